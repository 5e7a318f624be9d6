/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

package telemetry

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"gocomicstudio/internal/notify"
)

func TestClient_EventAndUploadCrash(t *testing.T) {
	var mu sync.Mutex
	var events [][]byte
	var crashes [][]byte

	mux := http.NewServeMux()
	mux.HandleFunc("/events", func(w http.ResponseWriter, r *http.Request) {
		b, _ := io.ReadAll(r.Body)
		_ = r.Body.Close()
		mu.Lock()
		events = append(events, append([]byte(nil), b...))
		mu.Unlock()
		w.WriteHeader(http.StatusOK)
	})
	mux.HandleFunc("/crash", func(w http.ResponseWriter, r *http.Request) {
		b, _ := io.ReadAll(r.Body)
		_ = r.Body.Close()
		mu.Lock()
		crashes = append(crashes, append([]byte(nil), b...))
		mu.Unlock()
		w.WriteHeader(http.StatusOK)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	cfg := Config{OptIn: true, EventsURL: srv.URL + "/events", CrashURL: srv.URL + "/crash", Timeout: 2 * time.Second}
	c := New(cfg)
	defer c.Close()

	if !c.Enabled() {
		t.Fatalf("expected client to be enabled")
	}

	// Send an event and flush
	c.Event("started", map[string]any{"k": "v"})
	c.Flush(context.Background())

	// Wait briefly for loop to send
	time.Sleep(50 * time.Millisecond)

	mu.Lock()
	ecount := len(events)
	mu.Unlock()
	if ecount == 0 {
		t.Fatalf("expected at least one event to be sent")
	}

	// Validate event JSON has name and ts
	var m map[string]any
	if err := json.Unmarshal(events[0], &m); err != nil {
		t.Fatalf("bad event json: %v", err)
	}
	if m["name"] != "started" {
		t.Fatalf("event name mismatch: %v", m["name"])
	}
	if _, ok := m["ts"].(string); !ok {
		t.Fatalf("missing ts field")
	}

	// Upload a crash report
	c.UploadCrash([]byte("STACKTRACE"))
	time.Sleep(50 * time.Millisecond)

	mu.Lock()
	ccount := len(crashes)
	mu.Unlock()
	if ccount == 0 {
		t.Fatalf("expected crash upload to be sent")
	}
}

func TestEnabled_DefaultClientAndFromEnv(t *testing.T) {
	t.Setenv("GCS_TELEMETRY_OPT_IN", "true")
	t.Setenv("GCS_TELEMETRY_URL", "http://127.0.0.1:0") // bogus URL but presence enables
	t.Setenv("GCS_CRASH_UPLOAD_URL", "")
	t.Setenv("GCS_TELEMETRY_TIMEOUT_MS", "100")

	cfg := FromEnv()
	if !cfg.OptIn || cfg.EventsURL == "" || cfg.Timeout <= 0 {
		t.Fatalf("FromEnv did not parse correctly: %+v", cfg)
	}

	c := New(cfg)
	defer c.Close()
	prev := SetDefault(c)
	defer SetDefault(prev)
	if !Enabled() {
		t.Fatalf("default Enabled should be true with env config")
	}
}

func TestSetDefaultRoutesPackageEvents(t *testing.T) {
	got := make(chan map[string]any, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var m map[string]any
		_ = json.NewDecoder(r.Body).Decode(&m)
		got <- m
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c := New(Config{OptIn: true, EventsURL: srv.URL, Timeout: time.Second})
	defer c.Close()
	prev := SetDefault(c)
	defer SetDefault(prev)
	if Default() != c {
		t.Fatalf("Default did not return the installed client")
	}

	Event("cli.script", map[string]any{"ok": true})
	select {
	case m := <-got:
		if m["name"] != "cli.script" {
			t.Fatalf("unexpected event: %v", m)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("package-level Event did not reach the installed client")
	}
}

func TestClient_ForwardBusEvents(t *testing.T) {
	got := make(chan map[string]any, 4)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var m map[string]any
		_ = json.NewDecoder(r.Body).Decode(&m)
		got <- m
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c := New(Config{OptIn: true, EventsURL: srv.URL, Timeout: time.Second})
	defer c.Close()

	bus := notify.NewBus()
	events, cancel := bus.Subscribe(8)
	defer cancel()
	ctx, stop := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		c.Forward(ctx, events)
		close(done)
	}()

	bus.Publish(notify.Event{Kind: notify.ArtworkStarted, Panel: 3})
	bus.Publish(notify.Event{Kind: notify.ArtworkFailed, Panel: 3, Message: "secret story text"})
	select {
	case m := <-got:
		if m["name"] != string(notify.ArtworkFailed) {
			t.Fatalf("name=%v", m["name"])
		}
		if m["panel"] != float64(3) {
			t.Fatalf("panel=%v", m["panel"])
		}
		for _, v := range m {
			if v == "secret story text" {
				t.Fatalf("message leaked into telemetry: %v", m)
			}
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("event not forwarded")
	}

	bus.Publish(notify.Event{Kind: notify.StepChanged, Message: "composing"})
	select {
	case m := <-got:
		if m["name"] != string(notify.StepChanged) || m["step"] != "composing" {
			t.Fatalf("step event=%v", m)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("step event not forwarded")
	}

	stop()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatalf("Forward did not stop on cancel")
	}
}

func TestClient_EventBudget(t *testing.T) {
	var mu sync.Mutex
	sent := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		sent++
		mu.Unlock()
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c := New(Config{OptIn: true, EventsURL: srv.URL, Timeout: time.Second, PerMinute: 2})
	defer c.Close()
	for i := 0; i < 10; i++ {
		c.Event("session.saved", nil)
	}
	c.Flush(context.Background())
	time.Sleep(100 * time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	if sent != 2 {
		t.Fatalf("sent=%d, want the burst of 2", sent)
	}
}

func TestFromEnv_PerMinute(t *testing.T) {
	t.Setenv("GCS_TELEMETRY_PER_MINUTE", "")
	if got := FromEnv().PerMinute; got != 120 {
		t.Fatalf("default=%d", got)
	}
	t.Setenv("GCS_TELEMETRY_PER_MINUTE", "0")
	if got := FromEnv().PerMinute; got != 0 {
		t.Fatalf("unlimited=%d", got)
	}
	t.Setenv("GCS_TELEMETRY_PER_MINUTE", "-3")
	if got := FromEnv().PerMinute; got != 120 {
		t.Fatalf("negative should keep default, got %d", got)
	}
}
