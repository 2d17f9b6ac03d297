/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math/rand"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	applog "sqldesigner/internal/log"
)

const (
	DiagramsDirName  = "diagrams"
	SnapshotsDirName = "snapshots"
)

// DiagramStore keeps one file per diagram under <root>/diagrams. Replacing a diagram
// with different content first copies the old file to <root>/snapshots/<name>__<unix millis>.
type DiagramStore struct {
	Root string

	now func() time.Time
}

// OpenDiagramStore creates the directory layout under root if needed.
func OpenDiagramStore(root string) (*DiagramStore, error) {
	if strings.TrimSpace(root) == "" {
		return nil, errors.New("root path is required")
	}
	for _, d := range []string{DiagramsDirName, SnapshotsDirName} {
		if err := os.MkdirAll(filepath.Join(root, d), 0o755); err != nil {
			return nil, fmt.Errorf("create subdir %s: %w", d, err)
		}
	}
	return &DiagramStore{Root: root, now: time.Now}, nil
}

func (s *DiagramStore) diagramPath(name string) (string, error) {
	if name == "" || strings.ContainsAny(name, `/\`) || name == "." || name == ".." {
		return "", fmt.Errorf("invalid diagram name %q", name)
	}
	return filepath.Join(s.Root, DiagramsDirName, name), nil
}

// Save stores content under name. It reports false when the stored content was already identical.
func (s *DiagramStore) Save(_ context.Context, name string, content []byte) (bool, error) {
	l := applog.WithOperation(applog.WithComponent("storage"), "diagram_save").With(slog.String("name", name))
	path, err := s.diagramPath(name)
	if err != nil {
		return false, err
	}
	if old, rerr := os.ReadFile(path); rerr == nil {
		if bytes.Equal(old, content) {
			l.Info("diagram unchanged")
			return false, nil
		}
		snap := filepath.Join(s.Root, SnapshotsDirName, fmt.Sprintf("%s__%d", name, s.now().UnixMilli()))
		if cerr := copyFile(path, snap); cerr != nil {
			return false, fmt.Errorf("snapshot current diagram: %w", cerr)
		}
		l.Info("diagram snapshot created", slog.String("snapshot", snap))
	} else if !errors.Is(rerr, os.ErrNotExist) {
		return false, fmt.Errorf("read current diagram: %w", rerr)
	}

	// Transactional write: to temp file in same directory, then rename over target
	temp := filepath.Join(filepath.Dir(path), fmt.Sprintf(".%s.tmp-%d-%d", name, os.Getpid(), rand.Int()))
	if werr := writeFileSync(temp, content); werr != nil {
		return false, fmt.Errorf("write temp diagram: %w", werr)
	}
	if rerr := os.Rename(temp, path); rerr != nil {
		_ = os.Remove(temp)
		return false, fmt.Errorf("replace diagram: %w", rerr)
	}
	l.Info("diagram saved", slog.Int("bytes", len(content)))
	return true, nil
}

// Load returns the stored diagram or ErrNotFound.
func (s *DiagramStore) Load(_ context.Context, name string) ([]byte, error) {
	path, err := s.diagramPath(name)
	if err != nil {
		return nil, err
	}
	b, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, ErrNotFound
	}
	return b, err
}

// List returns the stored diagram names, sorted.
func (s *DiagramStore) List(_ context.Context) ([]string, error) {
	ents, err := os.ReadDir(filepath.Join(s.Root, DiagramsDirName))
	if err != nil {
		return nil, fmt.Errorf("read diagrams dir: %w", err)
	}
	var out []string
	for _, e := range ents {
		if e.IsDir() || strings.HasPrefix(e.Name(), ".") {
			continue
		}
		out = append(out, e.Name())
	}
	sort.Strings(out)
	return out, nil
}

// Snapshots lists the snapshot files of name, newest first.
func (s *DiagramStore) Snapshots(name string) ([]string, error) {
	ents, err := os.ReadDir(filepath.Join(s.Root, SnapshotsDirName))
	if err != nil {
		return nil, fmt.Errorf("read snapshots dir: %w", err)
	}
	var out []string
	for _, e := range ents {
		if strings.HasPrefix(e.Name(), name+"__") {
			out = append(out, filepath.Join(s.Root, SnapshotsDirName, e.Name()))
		}
	}
	sort.Sort(sort.Reverse(sort.StringSlice(out)))
	return out, nil
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
