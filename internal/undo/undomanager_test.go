/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

package undo

import (
	"testing"
	"time"
)

func snap(panel int, blob string, ts time.Time) Snapshot {
	return Snapshot{Panel: panel, Blob: []byte(blob), TS: ts}
}

func TestUndoRedoBasic(t *testing.T) {
	m := NewManager(Config{MaxBytes: 1024 * 1024, MaxPerPanel: 10, MinInterval: 10 * time.Millisecond})
	t0 := time.Now()
	// state a -> b -> c, pushing the state before each edit
	m.PushSnapshot(snap(1, "a", t0))
	m.PushSnapshot(snap(1, "b", t0.Add(20*time.Millisecond)))
	if _, panels, total := m.Stats(); panels != 1 || total != 2 {
		t.Fatalf("expected 1 panel and 2 snapshots, got panels=%d total=%d", panels, total)
	}
	s, ok := m.Undo(snap(1, "c", t0))
	if !ok || string(s.Blob) != "b" {
		t.Fatalf("undo expected 'b', got ok=%v blob=%q", ok, string(s.Blob))
	}
	if !m.CanRedo(1) {
		t.Fatalf("redo should be available after undo")
	}
	s, ok = m.Redo(snap(1, "b", t0))
	if !ok || string(s.Blob) != "c" {
		t.Fatalf("redo expected 'c', got ok=%v blob=%q", ok, string(s.Blob))
	}
	if m.CanRedo(1) {
		t.Fatalf("redo stack should be empty")
	}
}

func TestCoalesceKeepsOlderSnapshot(t *testing.T) {
	m := NewManager(Config{MaxBytes: 1024 * 1024, MaxPerPanel: 10, MinInterval: 50 * time.Millisecond})
	t0 := time.Now()
	m.PushSnapshot(snap(2, "1", t0))
	m.PushSnapshot(snap(2, "2", t0.Add(10*time.Millisecond))) // coalesced
	m.PushSnapshot(snap(2, "3", t0.Add(20*time.Millisecond))) // coalesced
	if _, _, total := m.Stats(); total != 1 {
		t.Fatalf("expected coalesced to 1 snapshot, got %d", total)
	}
	s, ok := m.Undo(snap(2, "4", t0))
	if !ok || string(s.Blob) != "1" {
		t.Fatalf("expected snapshot before the burst, got ok=%v blob=%q", ok, string(s.Blob))
	}
}

func TestNewPushClearsRedo(t *testing.T) {
	m := NewManager(Config{})
	t0 := time.Now()
	m.PushSnapshot(snap(1, "a", t0))
	if _, ok := m.Undo(snap(1, "b", t0)); !ok {
		t.Fatalf("undo failed")
	}
	m.PushSnapshot(snap(1, "a", t0.Add(time.Second)))
	if m.CanRedo(1) {
		t.Fatalf("a new edit must clear redo")
	}
}

func TestCaps(t *testing.T) {
	m := NewManager(Config{MaxBytes: 20, MaxPerPanel: 2, MinInterval: time.Millisecond})
	t0 := time.Now()
	for i := 0; i < 10; i++ {
		m.PushSnapshot(snap(3, "xxxxx", t0.Add(time.Duration(i)*time.Second)))
	}
	_, _, total := m.Stats()
	if total > 2 {
		t.Fatalf("expected MaxPerPanel cap to limit to 2, got %d", total)
	}
}
