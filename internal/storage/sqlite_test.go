/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package storage

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"testing"
)

func openTestSQLite(t *testing.T, keep int) *SQLiteStore {
	t.Helper()
	s, err := OpenSQLite(context.Background(), filepath.Join(t.TempDir(), "studio.db"), keep)
	if err != nil {
		t.Fatalf("OpenSQLite: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestSQLiteStoreKV(t *testing.T) {
	ctx := context.Background()
	s := openTestSQLite(t, 5)
	if v, err := s.SchemaVersion(ctx); err != nil || v != schemaVersion {
		t.Fatalf("schema version = %d, %v", v, err)
	}
	if _, err := s.Get(ctx, "session"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("want ErrNotFound, got %v", err)
	}
	if err := s.Put(ctx, "session", []byte("one")); err != nil {
		t.Fatal(err)
	}
	if err := s.Put(ctx, "session", []byte("two")); err != nil {
		t.Fatal(err)
	}
	b, err := s.Get(ctx, "session")
	if err != nil || string(b) != "two" {
		t.Fatalf("Get = %q, %v", b, err)
	}
	if err := s.Delete(ctx, "session"); err != nil {
		t.Fatal(err)
	}
	if _, err := s.Get(ctx, "session"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("after delete want ErrNotFound, got %v", err)
	}
}

func TestSQLiteHistoryIsPruned(t *testing.T) {
	ctx := context.Background()
	s := openTestSQLite(t, 3)
	for i := 1; i <= 6; i++ {
		if err := s.Put(ctx, "session", []byte(fmt.Sprintf("v%d", i))); err != nil {
			t.Fatal(err)
		}
	}
	h, err := s.History(ctx, "session", 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(h) != 3 {
		t.Fatalf("expected 3 history entries, got %d", len(h))
	}
	newest, err := s.HistoryValue(ctx, "session", h[0].ID)
	if err != nil || string(newest) != "v6" {
		t.Fatalf("newest = %q, %v", newest, err)
	}
	oldest, err := s.HistoryValue(ctx, "session", h[2].ID)
	if err != nil || string(oldest) != "v4" {
		t.Fatalf("oldest kept = %q, %v", oldest, err)
	}
	if _, err := s.HistoryValue(ctx, "session", -1); !errors.Is(err, ErrNotFound) {
		t.Fatalf("want ErrNotFound, got %v", err)
	}
}

func TestSQLiteReopenKeepsData(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "studio.db")
	s, err := OpenSQLite(ctx, path, 0)
	if err != nil {
		t.Fatal(err)
	}
	_ = s.Put(ctx, "session", []byte("persisted"))
	_ = s.Close()
	s2, err := OpenSQLite(ctx, path, 0)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer s2.Close()
	if b, err := s2.Get(ctx, "session"); err != nil || string(b) != "persisted" {
		t.Fatalf("after reopen Get = %q, %v", b, err)
	}
}
