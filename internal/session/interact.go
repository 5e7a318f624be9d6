/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package session

import (
	"errors"
	"fmt"

	"gocomicstudio/internal/domain"
	"gocomicstudio/internal/overlay"
)

// panelOwner routes element commits of one panel back into the session.
type panelOwner struct {
	s   *Session
	seq int
}

func (o panelOwner) MoveOverlay(id string, pos domain.Position) (domain.Overlay, bool, error) {
	return o.s.applyOverlay(o.seq, func(p *domain.Panel) (domain.Overlay, bool) { return p.MoveOverlay(id, pos) })
}

func (o panelOwner) ScaleOverlay(id string, scale float64) (domain.Overlay, bool, error) {
	return o.s.applyOverlay(o.seq, func(p *domain.Panel) (domain.Overlay, bool) { return p.ScaleSticker(id, scale) })
}

func (o panelOwner) RemoveOverlay(id string) error {
	_, err := o.s.RemoveSticker(o.seq, id)
	return err
}

func (s *Session) lookupOverlayLocked(seq int, id string) (domain.Overlay, error) {
	if s.script.Empty() {
		return domain.Overlay{}, ErrNoScript
	}
	p, err := s.script.Panel(seq)
	if err != nil {
		return domain.Overlay{}, err
	}
	o, ok := p.Overlay(id)
	if !ok {
		return domain.Overlay{}, fmt.Errorf("%w: %s", ErrUnknownOverlay, id)
	}
	return o, nil
}

func (s *Session) element(seq int, id string) (*overlay.Element, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, err := s.lookupOverlayLocked(seq, id)
	if err != nil {
		return nil, err
	}
	return overlay.NewElement(o, s.pointers, panelOwner{s: s, seq: seq}), nil
}

// PressOverlay starts dragging an overlay. Moves and the release arrive
// through PointerMove and PointerUp. It reports whether a drag started.
func (s *Session) PressOverlay(seq int, id string, ev overlay.PointerEvent, container domain.Size) (bool, error) {
	s.mu.Lock()
	if e, ok := s.drags[id]; ok && e.State() == overlay.Dragging {
		s.mu.Unlock()
		return false, nil
	}
	o, err := s.lookupOverlayLocked(seq, id)
	if err != nil {
		s.mu.Unlock()
		return false, err
	}
	e := overlay.NewElement(o, s.pointers, panelOwner{s: s, seq: seq})
	s.drags[id] = e
	s.mu.Unlock()

	if !e.Press(ev, container) {
		s.mu.Lock()
		if s.drags[id] == e {
			delete(s.drags, id)
		}
		s.mu.Unlock()
		return false, nil
	}
	return true, nil
}

// PointerMove forwards a document-level pointer move to active drags.
func (s *Session) PointerMove(ev overlay.PointerEvent) { s.pointers.Move(ev) }

// PointerUp forwards a pointer release, which commits every active drag,
// and returns the commit errors.
func (s *Session) PointerUp(ev overlay.PointerEvent) error {
	s.pointers.Release(ev)
	return s.pruneDrags()
}

func (s *Session) pruneDrags() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	var errs []error
	for id, e := range s.drags {
		if e.State() != overlay.Idle {
			continue
		}
		delete(s.drags, id)
		if err := e.Err(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// AbandonDrags ends every active drag without committing, as when the
// user navigates away.
func (s *Session) AbandonDrags() {
	s.mu.Lock()
	drags := make([]*overlay.Element, 0, len(s.drags))
	for id, e := range s.drags {
		drags = append(drags, e)
		delete(s.drags, id)
	}
	s.mu.Unlock()
	for _, e := range drags {
		e.Abandon()
	}
}

// WheelOverlay applies one wheel step to a sticker and returns the
// committed overlay. Bubbles ignore the wheel.
func (s *Session) WheelOverlay(seq int, id string, deltaY float64) (domain.Overlay, error) {
	e, err := s.element(seq, id)
	if err != nil {
		return domain.Overlay{}, err
	}
	if err := e.Wheel(deltaY); err != nil {
		return e.Committed(), err
	}
	return e.Committed(), nil
}

// DoubleClickOverlay removes a sticker. It reports false for bubbles,
// which are hidden by clearing their text instead.
func (s *Session) DoubleClickOverlay(seq int, id string) (bool, error) {
	e, err := s.element(seq, id)
	if err != nil {
		if errors.Is(err, ErrUnknownOverlay) {
			return false, nil
		}
		return false, err
	}
	if !e.Committed().Kind.IsSticker() {
		return false, nil
	}
	s.mu.Lock()
	drag := s.drags[id]
	delete(s.drags, id)
	s.mu.Unlock()
	if drag != nil {
		drag.Abandon()
	}
	if err := e.DoubleClick(); err != nil {
		return false, err
	}
	return true, nil
}
