/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

// Package undo keeps per-panel undo/redo history of overlay placements.
package undo

import (
	"sync"
	"time"
)

// Snapshot is the overlay state of one panel before an edit.
// Blob content is opaque to the manager; size is estimated as len(Blob).
// TS is when the snapshot was captured.
type Snapshot struct {
	Panel int
	Blob  []byte
	TS    time.Time
}

// Config controls memory and depth caps and coalescing behavior.
type Config struct {
	// MaxBytes is a soft cap; older entries are pruned when exceeded.
	MaxBytes int
	// MaxPerPanel limits snapshots kept per panel (0 means unlimited).
	MaxPerPanel int
	// MinInterval coalesces edits on the same panel that arrive within the
	// interval: the older snapshot is kept so one undo reverts the burst
	// (a run of wheel steps, for instance).
	MinInterval time.Duration
}

// Manager provides an in-memory undo/redo stack per panel.
// It is safe for concurrent use.
type Manager struct {
	cfg Config
	mu  sync.Mutex
	// per-panel stacks
	undo map[int][]Snapshot
	redo map[int][]Snapshot
	// lastPush tracks coalescing per panel
	lastPush map[int]time.Time
	// accounting
	totalBytes int
}

func NewManager(cfg Config) *Manager {
	if cfg.MaxBytes <= 0 {
		cfg.MaxBytes = 16 * 1024 * 1024 // 16 MiB
	}
	if cfg.MinInterval < 0 {
		cfg.MinInterval = 0
	}
	return &Manager{
		cfg:      cfg,
		undo:     make(map[int][]Snapshot),
		redo:     make(map[int][]Snapshot),
		lastPush: make(map[int]time.Time),
	}
}

// PushSnapshot records the state of a panel before an edit. Within
// MinInterval of the previous push on that panel the new snapshot is
// dropped. Any push clears the redo stack of the panel.
func (m *Manager) PushSnapshot(s Snapshot) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.dropRedoLocked(s.Panel)
	last, seen := m.lastPush[s.Panel]
	m.lastPush[s.Panel] = s.TS
	if seen && len(m.undo[s.Panel]) > 0 && s.TS.Sub(last) < m.cfg.MinInterval {
		return
	}
	m.undo[s.Panel] = append(m.undo[s.Panel], s)
	m.totalBytes += len(s.Blob)
	m.enforceCapsLocked(s.Panel)
}

// Undo pops the latest snapshot of a panel and parks current on the redo
// stack. The caller restores the returned snapshot.
func (m *Manager) Undo(current Snapshot) (Snapshot, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	stack := m.undo[current.Panel]
	if len(stack) == 0 {
		return Snapshot{}, false
	}
	s := stack[len(stack)-1]
	m.undo[current.Panel] = stack[:len(stack)-1]
	m.totalBytes -= len(s.Blob)
	m.redo[current.Panel] = append(m.redo[current.Panel], current)
	m.totalBytes += len(current.Blob)
	delete(m.lastPush, current.Panel)
	return s, true
}

// Redo pops from redo and parks current back on the undo stack.
func (m *Manager) Redo(current Snapshot) (Snapshot, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r := m.redo[current.Panel]
	if len(r) == 0 {
		return Snapshot{}, false
	}
	s := r[len(r)-1]
	m.redo[current.Panel] = r[:len(r)-1]
	m.totalBytes -= len(s.Blob)
	m.undo[current.Panel] = append(m.undo[current.Panel], current)
	m.totalBytes += len(current.Blob)
	delete(m.lastPush, current.Panel)
	m.enforceCapsLocked(current.Panel)
	return s, true
}

// CanUndo and CanRedo report whether history exists for a panel.
func (m *Manager) CanUndo(panel int) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.undo[panel]) > 0
}

func (m *Manager) CanRedo(panel int) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.redo[panel]) > 0
}

// Reset drops all history.
func (m *Manager) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.undo = make(map[int][]Snapshot)
	m.redo = make(map[int][]Snapshot)
	m.lastPush = make(map[int]time.Time)
	m.totalBytes = 0
}

// Stats returns current sizes for diagnostics.
func (m *Manager) Stats() (totalBytes int, panels int, totalSnapshots int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	panels = len(m.undo)
	for _, v := range m.undo {
		totalSnapshots += len(v)
	}
	return m.totalBytes, panels, totalSnapshots
}

func (m *Manager) dropRedoLocked(panel int) {
	for _, s := range m.redo[panel] {
		m.totalBytes -= len(s.Blob)
	}
	m.redo[panel] = nil
}

func (m *Manager) enforceCapsLocked(panel int) {
	// Per-panel depth cap
	if m.cfg.MaxPerPanel > 0 {
		stack := m.undo[panel]
		if len(stack) > m.cfg.MaxPerPanel {
			toDrop := len(stack) - m.cfg.MaxPerPanel
			for i := 0; i < toDrop; i++ {
				m.totalBytes -= len(stack[i].Blob)
			}
			m.undo[panel] = append([]Snapshot{}, stack[toDrop:]...)
		}
	}
	// Global memory cap: prune oldest across all panels
	for m.cfg.MaxBytes > 0 && m.totalBytes > m.cfg.MaxBytes {
		oldestPanel := 0
		found := false
		var oldestTS time.Time
		for p, stack := range m.undo {
			if len(stack) == 0 {
				continue
			}
			if !found || stack[0].TS.Before(oldestTS) {
				oldestPanel = p
				oldestTS = stack[0].TS
				found = true
			}
		}
		if !found {
			break
		}
		stack := m.undo[oldestPanel]
		m.totalBytes -= len(stack[0].Blob)
		m.undo[oldestPanel] = stack[1:]
		if len(m.undo[oldestPanel]) == 0 {
			delete(m.undo, oldestPanel)
		}
	}
}
