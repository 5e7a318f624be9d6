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
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"math/rand"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	applog "gocomicstudio/internal/log"
)

const (
	BackupsDirName = "backups"
	fileExt        = ".json"
)

// FileStore keeps one JSON file per key in Root. Every Put first copies
// the current file to backups/<key>.json.<stamp>.bak and then replaces the
// file through a synced temp file and rename. Get falls back to the latest
// backup when the file is missing or not valid JSON, and logs a warning
// naming the backup it used.
type FileStore struct {
	Root string
	// MaxBackups bounds backups per key; 0 keeps all.
	MaxBackups int
}

// NewFileStore creates root and its backups folder if needed.
func NewFileStore(root string) (*FileStore, error) {
	if strings.TrimSpace(root) == "" {
		return nil, errors.New("root path is required")
	}
	if err := os.MkdirAll(filepath.Join(root, BackupsDirName), 0o755); err != nil {
		return nil, fmt.Errorf("create store root: %w", err)
	}
	return &FileStore{Root: root, MaxBackups: 10}, nil
}

func (f *FileStore) path(key string) string { return filepath.Join(f.Root, key+fileExt) }

// Get returns the value of key.
func (f *FileStore) Get(_ context.Context, key string) ([]byte, error) {
	if err := validKey(key); err != nil {
		return nil, err
	}
	b, err := os.ReadFile(f.path(key))
	if err == nil && json.Valid(b) {
		return b, nil
	}
	primaryErr := err
	if primaryErr == nil {
		primaryErr = errors.New("invalid JSON")
	}
	bb, from, berr := f.latestBackup(key)
	if berr != nil {
		if errors.Is(primaryErr, fs.ErrNotExist) && errors.Is(berr, ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("read %s: %w; backup attempt: %v", key, primaryErr, berr)
	}
	applog.WithOperation(applog.WithComponent("storage"), "file_get").Warn("value unreadable, restored from backup",
		slog.String("key", key),
		slog.String("backup", filepath.Base(from)),
		slog.Any("err", primaryErr))
	return bb, nil
}

// Put writes value transactionally after backing up the current value.
func (f *FileStore) Put(_ context.Context, key string, value []byte) error {
	if err := validKey(key); err != nil {
		return err
	}
	target := f.path(key)
	bdir := filepath.Join(f.Root, BackupsDirName)
	if err := os.MkdirAll(bdir, 0o755); err != nil {
		return fmt.Errorf("ensure backups dir: %w", err)
	}
	if _, statErr := os.Stat(target); statErr == nil {
		stamp := time.Now().Format("20060102-150405.000")
		bpath := filepath.Join(bdir, fmt.Sprintf("%s%s.%s.bak", key, fileExt, stamp))
		if cerr := copyFile(target, bpath); cerr != nil {
			return fmt.Errorf("backup current value: %w", cerr)
		}
		f.pruneBackups(key)
	}

	// Transactional write: to temp file in same directory, then rename over target
	temp := filepath.Join(f.Root, fmt.Sprintf(".%s.tmp-%d-%d", key, os.Getpid(), rand.Int()))
	if werr := writeFileSync(temp, value); werr != nil {
		_ = os.Remove(temp)
		return fmt.Errorf("write temp file: %w", werr)
	}
	// On Windows, replace by removing destination first if needed
	if _, err := os.Stat(target); err == nil {
		_ = os.Remove(target)
	}
	if rerr := os.Rename(temp, target); rerr != nil {
		_ = os.Remove(temp)
		return fmt.Errorf("replace %s: %w", key, rerr)
	}
	return nil
}

// Delete removes key and its backups. A missing key is not an error.
func (f *FileStore) Delete(_ context.Context, key string) error {
	if err := validKey(key); err != nil {
		return err
	}
	if err := os.Remove(f.path(key)); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	for _, b := range f.backups(key) {
		_ = os.Remove(b)
	}
	return nil
}

func (f *FileStore) Close() error { return nil }

// backups lists backup files of key, oldest first.
func (f *FileStore) backups(key string) []string {
	bdir := filepath.Join(f.Root, BackupsDirName)
	ents, err := os.ReadDir(bdir)
	if err != nil {
		return nil
	}
	prefix := key + fileExt + "."
	var out []string
	for _, e := range ents {
		name := e.Name()
		if strings.HasPrefix(name, prefix) && strings.HasSuffix(name, ".bak") {
			out = append(out, filepath.Join(bdir, name))
		}
	}
	sort.Strings(out) // timestamp in name yields lexicographic order
	return out
}

func (f *FileStore) pruneBackups(key string) {
	if f.MaxBackups <= 0 {
		return
	}
	all := f.backups(key)
	for len(all) > f.MaxBackups {
		_ = os.Remove(all[0])
		all = all[1:]
	}
}

// latestBackup returns the newest backup holding valid JSON.
func (f *FileStore) latestBackup(key string) ([]byte, string, error) {
	all := f.backups(key)
	if len(all) == 0 {
		return nil, "", ErrNotFound
	}
	for i := len(all) - 1; i >= 0; i-- {
		b, err := os.ReadFile(all[i])
		if err == nil && json.Valid(b) {
			return b, all[i], nil
		}
	}
	return nil, "", errors.New("no readable backup")
}

// WriteCrashSnapshot stores data next to the backups as
// crash-<stamp>.json without touching the regular value. It returns the path.
func WriteCrashSnapshot(dir string, data []byte) (string, error) {
	if strings.TrimSpace(dir) == "" {
		dir = os.TempDir()
	}
	bdir := filepath.Join(dir, BackupsDirName)
	if err := os.MkdirAll(bdir, 0o755); err != nil {
		return "", err
	}
	p := filepath.Join(bdir, fmt.Sprintf("crash-%s.json", time.Now().Format("20060102-150405")))
	if err := writeFileSync(p, data); err != nil {
		return "", err
	}
	return p, nil
}

// writeFileSync writes data to a file, ensures it is flushed to disk.
func writeFileSync(path string, data []byte) (err error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := f.Close(); err == nil {
			err = cerr
		}
	}()
	if _, err := f.Write(data); err != nil {
		return err
	}
	return f.Sync()
}

// copyFile copies a file from src to dst (overwrites dst if exists).
func copyFile(src, dst string) (err error) {
	sf, err := os.Open(src)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := sf.Close(); err == nil {
			err = cerr
		}
	}()
	df, err := os.OpenFile(dst, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := df.Close(); err == nil {
			err = cerr
		}
	}()
	if _, err := io.Copy(df, sf); err != nil {
		return err
	}
	return df.Sync()
}
