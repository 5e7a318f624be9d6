/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package notify

import (
	"testing"
	"time"
)

func TestPublishReachesSubscribers(t *testing.T) {
	b := NewBus()
	c1, un1 := b.Subscribe(4)
	c2, un2 := b.Subscribe(4)
	defer un2()

	b.Publish(Event{Kind: Saved})
	for i, c := range []<-chan Event{c1, c2} {
		select {
		case e := <-c:
			if e.Kind != Saved || e.Time.IsZero() {
				t.Fatalf("sub %d got %+v", i, e)
			}
		case <-time.After(time.Second):
			t.Fatalf("sub %d timed out", i)
		}
	}

	un1()
	un1() // idempotent
	if _, ok := <-c1; ok {
		t.Fatalf("channel should be closed after unsubscribe")
	}
	b.Publish(Event{Kind: Reset})
	if e := <-c2; e.Kind != Reset {
		t.Fatalf("remaining subscriber got %+v", e)
	}
}

func TestSlowSubscriberDoesNotBlock(t *testing.T) {
	b := NewBus()
	c, un := b.Subscribe(1)
	defer un()
	done := make(chan struct{})
	go func() {
		for i := 0; i < 100; i++ {
			b.Publish(Event{Kind: ArtworkReady, Panel: i})
		}
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatalf("publish blocked on a full subscriber")
	}
	if e := <-c; e.Panel != 0 {
		t.Fatalf("expected first event to be kept, got panel %d", e.Panel)
	}
}

func TestCloseClosesSubscribers(t *testing.T) {
	b := NewBus()
	c, _ := b.Subscribe(1)
	b.Close()
	if _, ok := <-c; ok {
		t.Fatalf("channel should be closed")
	}
	late, _ := b.Subscribe(1)
	if _, ok := <-late; ok {
		t.Fatalf("subscribe after close should return a closed channel")
	}
	b.Publish(Event{Kind: Saved}) // must not panic
}
