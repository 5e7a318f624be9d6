/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package overlay

import "sync"

// Hub is an in-process PointerChannel. The HTTP API forwards browser
// pointermove/pointerup events to Move and Release.
type Hub struct {
	mu   sync.Mutex
	subs map[int]subscription
	next int
}

type subscription struct {
	onMove, onRelease func(PointerEvent)
}

func NewHub() *Hub { return &Hub{subs: make(map[int]subscription)} }

// Subscribe registers move/release callbacks until unsubscribe is called.
func (h *Hub) Subscribe(onMove, onRelease func(PointerEvent)) func() {
	h.mu.Lock()
	id := h.next
	h.next++
	h.subs[id] = subscription{onMove: onMove, onRelease: onRelease}
	h.mu.Unlock()
	var once sync.Once
	return func() {
		once.Do(func() {
			h.mu.Lock()
			delete(h.subs, id)
			h.mu.Unlock()
		})
	}
}

// Move delivers a pointer move to every subscriber.
func (h *Hub) Move(ev PointerEvent) {
	for _, s := range h.snapshot() {
		if s.onMove != nil {
			s.onMove(ev)
		}
	}
}

// Release delivers a pointer release to every subscriber. Subscribers
// typically unsubscribe from inside the callback.
func (h *Hub) Release(ev PointerEvent) {
	for _, s := range h.snapshot() {
		if s.onRelease != nil {
			s.onRelease(ev)
		}
	}
}

// Active returns the number of subscribers.
func (h *Hub) Active() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}

// callbacks run outside the lock so they may unsubscribe
func (h *Hub) snapshot() []subscription {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]subscription, 0, len(h.subs))
	for _, s := range h.subs {
		out = append(out, s)
	}
	return out
}
