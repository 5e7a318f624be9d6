/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package overlay implements pointer interaction with overlay elements:
// press-drag-release moves with a single commit on release, wheel scaling
// and double-click removal of stickers.
//
// Move and release events are not delivered to the element directly. They
// arrive through a PointerChannel (the document-level pointer stream) that
// the element subscribes to for the lifetime of one drag only.
package overlay

import (
	"log/slog"
	"sync"

	"gocomicstudio/internal/domain"
	applog "gocomicstudio/internal/log"
)

// Button identifies a pointer button. Primary is the left mouse button or
// a touch contact.
type Button int

const (
	Primary   Button = 0
	Auxiliary Button = 1
	Secondary Button = 2
)

// PointerEvent is a pointer position in device pixels.
type PointerEvent struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Button Button  `json:"button"`
}

// PointerChannel delivers document-level pointer moves and releases.
type PointerChannel interface {
	Subscribe(onMove, onRelease func(PointerEvent)) (unsubscribe func())
}

// Owner receives commits. A drag commits only the position and a wheel
// step only the scale; the owner applies each to its current record as one
// whole-record replacement and returns the result. found is false when the
// overlay no longer exists, which is not an error.
type Owner interface {
	MoveOverlay(id string, pos domain.Position) (o domain.Overlay, found bool, err error)
	ScaleOverlay(id string, scale float64) (o domain.Overlay, found bool, err error)
	RemoveOverlay(id string) error
}

// State of an element.
type State int

const (
	Idle State = iota
	Dragging
)

func (s State) String() string {
	if s == Dragging {
		return "dragging"
	}
	return "idle"
}

// Element is one overlay under interaction.
type Element struct {
	mu        sync.Mutex
	committed domain.Overlay
	state     State
	transient domain.Position
	anchorPtr PointerEvent
	anchorPos domain.Position
	container domain.Size
	unsub     func()
	pointers  PointerChannel
	owner     Owner
	lastErr   error
}

// NewElement wraps the committed overlay o.
func NewElement(o domain.Overlay, pointers PointerChannel, owner Owner) *Element {
	return &Element{committed: o, pointers: pointers, owner: owner}
}

// ID returns the overlay id.
func (e *Element) ID() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.committed.ID
}

// State returns idle or dragging.
func (e *Element) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

// Committed returns the last committed record.
func (e *Element) Committed() domain.Overlay {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.committed
}

// Position is what a renderer shows: the transient position while
// dragging, the committed one otherwise.
func (e *Element) Position() domain.Position {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state == Dragging {
		return e.transient
	}
	return e.committed.Position
}

// Err returns the error of the last failed commit, if any.
func (e *Element) Err() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.lastErr
}

// Press starts a drag on a primary-button press. It anchors the pointer
// and the committed position and subscribes to the pointer channel.
// Nothing is committed. It reports whether a drag started.
func (e *Element) Press(ev PointerEvent, container domain.Size) bool {
	if ev.Button != Primary {
		return false
	}
	e.mu.Lock()
	if e.state == Dragging {
		e.mu.Unlock()
		return false
	}
	e.state = Dragging
	e.anchorPtr = ev
	e.anchorPos = e.committed.Position
	e.transient = e.committed.Position
	e.container = container
	e.mu.Unlock()

	// Subscribe outside the lock; a channel may deliver synchronously.
	unsub := e.pointers.Subscribe(e.move, e.release)
	e.mu.Lock()
	if e.state == Dragging && e.unsub == nil {
		e.unsub = unsub
		unsub = nil
	}
	e.mu.Unlock()
	if unsub != nil {
		unsub()
	}
	return true
}

func (e *Element) move(ev PointerEvent) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state != Dragging {
		return
	}
	d := domain.PixelDeltaToPercent(ev.X-e.anchorPtr.X, ev.Y-e.anchorPtr.Y, e.container)
	e.transient = domain.ClampPosition(e.anchorPos.Add(d))
}

func (e *Element) release(ev PointerEvent) {
	e.move(ev)
	e.mu.Lock()
	if e.state != Dragging {
		e.mu.Unlock()
		return
	}
	id, pos := e.committed.ID, e.transient
	unsub := e.endDragLocked()
	e.mu.Unlock()
	if unsub != nil {
		unsub()
	}
	_ = e.commit("move", func() (domain.Overlay, bool, error) { return e.owner.MoveOverlay(id, pos) })
}

// Abandon ends a drag without committing, as when the user navigates
// away mid-drag. The committed position is untouched.
func (e *Element) Abandon() {
	e.mu.Lock()
	unsub := e.endDragLocked()
	e.mu.Unlock()
	if unsub != nil {
		unsub()
	}
}

func (e *Element) endDragLocked() func() {
	e.state = Idle
	e.transient = e.committed.Position
	unsub := e.unsub
	e.unsub = nil
	return unsub
}

// Wheel applies one scale step to a sticker and commits it immediately.
// The position is left to the owner's record, so a drag in progress and
// the wheel never overwrite each other. Bubbles ignore the wheel.
func (e *Element) Wheel(deltaY float64) error {
	e.mu.Lock()
	if !e.committed.Kind.IsSticker() || deltaY == 0 {
		e.mu.Unlock()
		return nil
	}
	id, scale := e.committed.ID, domain.StepScale(e.committed.Scale, deltaY)
	e.mu.Unlock()
	return e.commit("scale", func() (domain.Overlay, bool, error) { return e.owner.ScaleOverlay(id, scale) })
}

// DoubleClick asks the owner to remove a sticker. Bubbles ignore it; they
// disappear when their text is cleared.
func (e *Element) DoubleClick() error {
	e.mu.Lock()
	if !e.committed.Kind.IsSticker() {
		e.mu.Unlock()
		return nil
	}
	id := e.committed.ID
	unsub := e.endDragLocked()
	e.mu.Unlock()
	if unsub != nil {
		unsub()
	}
	if err := e.owner.RemoveOverlay(id); err != nil {
		e.setErr(err)
		return err
	}
	return nil
}

func (e *Element) commit(op string, apply func() (domain.Overlay, bool, error)) error {
	l := applog.WithOperation(applog.WithComponent("overlay"), op)
	o, found, err := apply()
	if err != nil {
		l.Warn("overlay commit failed", slog.String("id", e.ID()), slog.Any("err", err))
		e.setErr(err)
		return err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.lastErr = nil
	if !found {
		// Removed while under interaction; nothing left to update.
		l.Debug("overlay gone before commit", slog.String("id", e.committed.ID))
		return nil
	}
	e.committed = o
	if e.state != Dragging {
		e.transient = o.Position
	}
	return nil
}

func (e *Element) setErr(err error) {
	e.mu.Lock()
	e.lastErr = err
	e.mu.Unlock()
}
