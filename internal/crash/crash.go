/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package crash turns a panic into a crash report and an autosave of the open diagram.
package crash

import (
	"bytes"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"runtime/debug"
	"time"

	applog "sqldesigner/internal/log"
	"sqldesigner/internal/telemetry"
	"sqldesigner/internal/version"
)

// exitFn is replaced in tests.
var exitFn = os.Exit

// Source yields the current diagram XML; persist.Document satisfies it.
type Source interface {
	ToXML() string
}

// Recover captures a panic, writes a report to dir (os.TempDir when empty) and
// saves the diagram next to it, then exits with status 2.
//
// Usage: defer crash.Recover(doc, dir)
func Recover(src Source, dir string) {
	r := recover()
	if r == nil {
		return
	}
	Report(src, dir, r, debug.Stack())
	_, _ = fmt.Fprintf(os.Stderr, "Version: %s\nOS/Arch: %s/%s\n", version.String(), runtime.GOOS, runtime.GOARCH)
	exitFn(2)
}

// Report records a panic that was already recovered: it writes the report, saves
// the diagram and tells the user where both went. It returns the report path and
// leaves the process running.
func Report(src Source, dir string, panicVal any, stack []byte) string {
	l := applog.WithComponent("crash")
	l.Error("panic recovered", slog.Any("panic", panicVal), slog.String("stack", string(stack)))

	stamp := time.Now().Format("20060102-150405")
	reportPath, err := writeReport(dir, stamp, panicVal, stack)
	if err != nil {
		l.Error("crash report not written", slog.Any("err", err))
	}
	if src != nil {
		if path, err := autosave(dir, stamp, src); err != nil {
			l.Error("autosave failed", slog.Any("err", err))
		} else {
			l.Info("autosave written", slog.String("path", path))
			_, _ = fmt.Fprintf(os.Stderr, "Your diagram was saved to: %s\n", path)
		}
	}
	_, _ = fmt.Fprintf(os.Stderr, "An internal error occurred. A crash report was saved to: %s\n", reportPath)
	return reportPath
}

func crashDir(dir string) (string, error) {
	if dir == "" {
		return os.TempDir(), nil
	}
	return dir, os.MkdirAll(dir, 0o755)
}

func writeReport(dir, stamp string, panicVal any, stack []byte) (string, error) {
	dir, err := crashDir(dir)
	if err != nil {
		return "", err
	}
	path := filepath.Join(dir, "crash-"+stamp+".log")

	var buf bytes.Buffer
	_, _ = fmt.Fprintf(&buf, "SQL Designer Crash Report\n")
	_, _ = fmt.Fprintf(&buf, "Timestamp: %s\n", time.Now().Format(time.RFC3339))
	_, _ = fmt.Fprintf(&buf, "Version: %s\n", version.String())
	_, _ = fmt.Fprintf(&buf, "OS/Arch: %s/%s\n", runtime.GOOS, runtime.GOARCH)
	_, _ = fmt.Fprintf(&buf, "\nPanic: %v\n\n", panicVal)
	_, _ = fmt.Fprintf(&buf, "Stack:\n%s\n", stack)

	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		return path, err
	}
	telemetry.UploadCrash(buf.Bytes())
	return path, nil
}

// autosave writes the diagram through a temp file so a second failure cannot
// leave a truncated autosave behind.
func autosave(dir, stamp string, src Source) (path string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("serialize: %v", r)
		}
	}()
	xml := src.ToXML()
	if xml == "" {
		return "", fmt.Errorf("empty document")
	}
	dir, err = crashDir(dir)
	if err != nil {
		return "", err
	}
	path = filepath.Join(dir, "autosave-"+stamp+".xml")
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, []byte(xml), 0o644); err != nil {
		return "", err
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return "", err
	}
	return path, nil
}
