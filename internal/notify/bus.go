/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package notify carries session notifications (script generated, artwork
// ready, saved, ...) from the editing session to whoever listens: the SSE
// stream of the HTTP API, telemetry, the CLI.
package notify

import (
	"sync"
	"time"
)

// Kind names a notification.
type Kind string

const (
	ScriptGenerated Kind = "script.generated"
	ScriptFailed    Kind = "script.failed"
	ArtworkStarted  Kind = "artwork.started"
	ArtworkReady    Kind = "artwork.ready"
	ArtworkFailed   Kind = "artwork.failed"
	StickerAdded    Kind = "sticker.added"
	StickerRemoved  Kind = "sticker.removed"
	StepChanged     Kind = "step.changed"
	Saved           Kind = "session.saved"
	Loaded          Kind = "session.loaded"
	LoadFailed      Kind = "session.load_failed"
	Reset           Kind = "session.reset"
)

// Event is one notification. Panel is 0 for session-wide events.
type Event struct {
	Kind    Kind      `json:"kind"`
	Panel   int       `json:"panel,omitempty"`
	Message string    `json:"message,omitempty"`
	Time    time.Time `json:"time"`
}

// Notifier is what the session publishes to.
type Notifier interface {
	Publish(Event)
}

// Bus fans events out to subscribers. Each subscriber has a bounded
// buffer; events that do not fit are dropped for that subscriber so a slow
// listener never blocks the session.
type Bus struct {
	mu     sync.RWMutex
	subs   map[int]chan Event
	nextID int
	closed bool
}

func NewBus() *Bus { return &Bus{subs: make(map[int]chan Event)} }

// Subscribe returns a channel of events and a function that detaches it.
// The channel is closed on unsubscribe or Close.
func (b *Bus) Subscribe(buffer int) (<-chan Event, func()) {
	if buffer <= 0 {
		buffer = 16
	}
	ch := make(chan Event, buffer)
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		close(ch)
		return ch, func() {}
	}
	id := b.nextID
	b.nextID++
	b.subs[id] = ch
	var once sync.Once
	return ch, func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			if c, ok := b.subs[id]; ok {
				delete(b.subs, id)
				close(c)
			}
		})
	}
}

// Publish delivers e to every subscriber that has room.
func (b *Bus) Publish(e Event) {
	if e.Time.IsZero() {
		e.Time = time.Now()
	}
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, ch := range b.subs {
		select {
		case ch <- e:
		default:
		}
	}
}

// Close detaches all subscribers. Later publishes are ignored.
func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	for id, ch := range b.subs {
		delete(b.subs, id)
		close(ch)
	}
}

// Discard drops every event.
var Discard Notifier = discard{}

type discard struct{}

func (discard) Publish(Event) {}
