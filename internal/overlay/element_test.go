/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package overlay

import (
	"errors"
	"math"
	"sync"
	"testing"

	"gocomicstudio/internal/domain"
)

// fakeOwner keeps overlay records the way a panel does.
type fakeOwner struct {
	mu       sync.Mutex
	records  map[string]domain.Overlay
	commits  []domain.Overlay
	removed  []string
	failNext error
}

func newOwner(records ...domain.Overlay) *fakeOwner {
	f := &fakeOwner{records: map[string]domain.Overlay{}}
	for _, o := range records {
		f.records[o.ID] = o
	}
	return f
}

func (f *fakeOwner) update(id string, fn func(*domain.Overlay)) (domain.Overlay, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failNext != nil {
		err := f.failNext
		f.failNext = nil
		return domain.Overlay{}, false, err
	}
	o, ok := f.records[id]
	if !ok {
		return domain.Overlay{}, false, nil
	}
	fn(&o)
	f.records[id] = o
	f.commits = append(f.commits, o)
	return o, true, nil
}

func (f *fakeOwner) MoveOverlay(id string, pos domain.Position) (domain.Overlay, bool, error) {
	return f.update(id, func(o *domain.Overlay) { o.Position = pos })
}

func (f *fakeOwner) ScaleOverlay(id string, scale float64) (domain.Overlay, bool, error) {
	return f.update(id, func(o *domain.Overlay) { o.Scale = scale })
}

func (f *fakeOwner) RemoveOverlay(id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.records, id)
	f.removed = append(f.removed, id)
	return nil
}

var box = domain.Size{Width: 400, Height: 300}

func sticker() domain.Overlay {
	return domain.Overlay{ID: "s1", Kind: domain.KindStickerEmoji, Content: "✨", Position: domain.Position{X: 50, Y: 50}, Scale: 1}
}

func bubble() domain.Overlay {
	return domain.Overlay{ID: "b1", Kind: domain.KindSpeech, Position: domain.Position{X: 50, Y: 85}, Scale: 1}
}

func TestDragCommitsOnceOnRelease(t *testing.T) {
	hub := NewHub()
	owner := newOwner(sticker())
	e := NewElement(sticker(), hub, owner)

	if !e.Press(PointerEvent{X: 100, Y: 100}, box) {
		t.Fatalf("press should start a drag")
	}
	if hub.Active() != 1 || e.State() != Dragging {
		t.Fatalf("expected one subscription while dragging")
	}
	hub.Move(PointerEvent{X: 140, Y: 100}) // +10%
	hub.Move(PointerEvent{X: 180, Y: 130}) // +20%, +10%
	if got := e.Position(); got != (domain.Position{X: 70, Y: 60}) {
		t.Fatalf("transient = %+v", got)
	}
	if len(owner.commits) != 0 {
		t.Fatalf("moves must not commit")
	}
	hub.Release(PointerEvent{X: 180, Y: 130})
	if len(owner.commits) != 1 {
		t.Fatalf("expected one commit, got %d", len(owner.commits))
	}
	if c := owner.commits[0]; c.Position != (domain.Position{X: 70, Y: 60}) || c.Scale != 1 || c.ID != "s1" {
		t.Fatalf("commit = %+v", c)
	}
	if hub.Active() != 0 || e.State() != Idle {
		t.Fatalf("release must unsubscribe")
	}
	if e.Committed().Position != (domain.Position{X: 70, Y: 60}) {
		t.Fatalf("committed not updated")
	}
}

func TestDragIsClampedToCumulativeBounds(t *testing.T) {
	hub := NewHub()
	owner := newOwner(sticker())
	e := NewElement(sticker(), hub, owner)
	e.Press(PointerEvent{X: 0, Y: 0}, box)
	hub.Move(PointerEvent{X: 10000, Y: -10000})
	hub.Release(PointerEvent{X: 10000, Y: -10000})
	if c := owner.commits[0].Position; c.X != domain.PositionMax || c.Y != domain.PositionMin {
		t.Fatalf("commit not clamped: %+v", c)
	}
}

func TestAbandonNeverCommits(t *testing.T) {
	hub := NewHub()
	owner := newOwner(bubble())
	e := NewElement(bubble(), hub, owner)
	e.Press(PointerEvent{X: 10, Y: 10}, box)
	hub.Move(PointerEvent{X: 200, Y: 10})
	e.Abandon()
	hub.Release(PointerEvent{X: 200, Y: 10})
	if len(owner.commits) != 0 {
		t.Fatalf("abandoned drag committed %+v", owner.commits)
	}
	if e.Position() != bubble().Position || hub.Active() != 0 {
		t.Fatalf("abandon should restore committed position and unsubscribe")
	}
}

func TestNonPrimaryPressIgnored(t *testing.T) {
	hub := NewHub()
	e := NewElement(sticker(), hub, newOwner(sticker()))
	if e.Press(PointerEvent{Button: Secondary}, box) || hub.Active() != 0 {
		t.Fatalf("secondary button must not start a drag")
	}
}

func TestWheelStepsAndBubblesIgnoreWheel(t *testing.T) {
	hub := NewHub()
	owner := newOwner(sticker(), bubble())
	e := NewElement(sticker(), hub, owner)
	for i := 0; i < 3; i++ {
		if err := e.Wheel(-100); err != nil {
			t.Fatal(err)
		}
	}
	if got := e.Committed().Scale; math.Abs(got-1.3) > 1e-9 {
		t.Fatalf("scale = %v", got)
	}
	if len(owner.commits) != 3 || owner.commits[2].Position != sticker().Position {
		t.Fatalf("wheel must commit with current position: %+v", owner.commits)
	}
	for i := 0; i < 100; i++ {
		_ = e.Wheel(1)
	}
	if got := e.Committed().Scale; got != domain.ScaleMin {
		t.Fatalf("scale floor = %v", got)
	}

	b := NewElement(bubble(), hub, owner)
	n := len(owner.commits)
	if err := b.Wheel(-1); err != nil || len(owner.commits) != n {
		t.Fatalf("bubble wheel should be ignored")
	}
}

func TestDoubleClickRemovesStickerOnly(t *testing.T) {
	owner := newOwner(sticker(), bubble())
	hub := NewHub()
	if err := NewElement(bubble(), hub, owner).DoubleClick(); err != nil || len(owner.removed) != 0 {
		t.Fatalf("bubble double click should be ignored")
	}
	if err := NewElement(sticker(), hub, owner).DoubleClick(); err != nil || len(owner.removed) != 1 || owner.removed[0] != "s1" {
		t.Fatalf("sticker not removed: %v", owner.removed)
	}
}

func TestFailedCommitKeepsCommittedValue(t *testing.T) {
	hub := NewHub()
	owner := newOwner(sticker())
	owner.failNext = errors.New("gone")
	e := NewElement(sticker(), hub, owner)
	e.Press(PointerEvent{}, box)
	hub.Release(PointerEvent{X: 40, Y: 0})
	if e.Err() == nil {
		t.Fatalf("expected commit error to be recorded")
	}
	if e.Committed().Position != sticker().Position {
		t.Fatalf("committed changed despite failure")
	}
}

func TestWheelDuringDragSurvivesRelease(t *testing.T) {
	hub := NewHub()
	owner := newOwner(sticker())
	drag := NewElement(sticker(), hub, owner)
	drag.Press(PointerEvent{X: 100, Y: 100}, box)
	hub.Move(PointerEvent{X: 140, Y: 130})

	if err := NewElement(sticker(), hub, owner).Wheel(-1); err != nil {
		t.Fatalf("wheel: %v", err)
	}
	hub.Release(PointerEvent{X: 140, Y: 130})

	got := owner.records["s1"]
	if math.Abs(got.Scale-1.1) > 1e-9 || got.Position != (domain.Position{X: 60, Y: 60}) {
		t.Fatalf("record after release = %+v", got)
	}
	if c := drag.Committed(); math.Abs(c.Scale-1.1) > 1e-9 {
		t.Fatalf("element committed scale = %v", c.Scale)
	}
}

func TestReleaseAfterRemovalIsSilent(t *testing.T) {
	hub := NewHub()
	owner := newOwner(sticker())
	e := NewElement(sticker(), hub, owner)
	e.Press(PointerEvent{}, box)
	_ = owner.RemoveOverlay("s1")
	hub.Release(PointerEvent{X: 40})
	if e.Err() != nil || len(owner.commits) != 0 || e.State() != Idle {
		t.Fatalf("err=%v commits=%d state=%v", e.Err(), len(owner.commits), e.State())
	}
}
