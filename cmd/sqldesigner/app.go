/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"sqldesigner/internal/backend"
	"sqldesigner/internal/config"
	"sqldesigner/internal/crash"
	"sqldesigner/internal/domain"
	applog "sqldesigner/internal/log"
	"sqldesigner/internal/persist"
	"sqldesigner/internal/storage"
	"sqldesigner/internal/telemetry"
	"sqldesigner/internal/xmldoc"
)

// reported marks an error the controller already surfaced to the user.
type reported struct{ error }

func (r reported) Unwrap() error { return r.error }

// app is the owning application of the controller: it holds the document file,
// the local store and the terminal that stands in for dialogs.
type app struct {
	cfgPath string
	file    string
	db      string
	engine  string

	con *console
	cfg config.AppConfig

	doc *xmldoc.RawDocument
	kv  *storage.SQLiteKV
	ctl *persist.Controller
}

func newApp(in io.Reader, out, errw io.Writer) *app {
	return &app{con: &console{in: bufio.NewReader(in), out: out, errw: errw}}
}

// ToXML lets crash recovery autosave whatever document is open.
func (a *app) ToXML() string {
	if a.doc == nil {
		return ""
	}
	return a.doc.ToXML()
}

func (a *app) loadConfig() error {
	var err error
	if a.cfgPath != "" {
		a.cfg, err = config.LoadFile(a.cfgPath)
	} else {
		a.cfg, err = config.Load()
	}
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if a.db != "" {
		a.cfg.Transform.DB = a.db
	}
	if a.engine != "" {
		a.cfg.Transform.Engine = a.engine
	}
	applog.Init(applog.Options{
		Level:     a.cfg.Logging.Level,
		Format:    a.cfg.Logging.Format,
		AddSource: a.cfg.Logging.Source,
		File:      a.cfg.Logging.File,
		Writer:    a.con.errw,
	})
	tc := telemetry.FromEnv()
	tc.OptIn = tc.OptIn || a.cfg.General.TelemetryOptIn
	telemetry.NewDefault(tc)
	return nil
}

// openDocument reads --file. A missing file yields an empty diagram when the
// command is about to replace it anyway.
func (a *app) openDocument(mustExist bool) error {
	b, err := os.ReadFile(a.file)
	switch {
	case err == nil:
		a.doc = xmldoc.NewRawDocument(string(b))
	case errors.Is(err, os.ErrNotExist) && !mustExist:
		a.doc = xmldoc.NewRawDocument("")
	default:
		return fmt.Errorf("read diagram: %w", err)
	}
	return nil
}

// writeDocument stores the hydrated document back to --file via temp file and rename.
func (a *app) writeDocument() error {
	dir := filepath.Dir(a.file)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	f, err := os.CreateTemp(dir, ".diagram-*.xml")
	if err != nil {
		return err
	}
	tmp := f.Name()
	if _, err := f.WriteString(a.doc.ToXML()); err != nil {
		_ = f.Close()
		_ = os.Remove(tmp)
		return err
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(tmp)
		return err
	}
	if err := os.Rename(tmp, a.file); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("write diagram: %w", err)
	}
	return nil
}

// controller wires the persistence controller from config. The document must be open.
func (a *app) controller() (*persist.Controller, error) {
	if a.ctl != nil {
		return a.ctl, nil
	}
	l := applog.WithComponent("cli")
	d := persist.Deps{
		Document: a.doc,
		Window:   a.con,
		Output:   a.con,
		Notifier: a.con,
		Prompter: a.con,
		DB:       a.cfg.Transform.DB,
		OnPanic: func(r any, stack []byte) {
			crash.Report(a, crashDir(), r, stack)
		},
	}
	if !a.cfg.Local.Disabled {
		kv, err := storage.OpenSQLite(a.cfg.Local.DBPath)
		if err != nil {
			l.Warn("local store unavailable", slog.Any("err", err))
		} else {
			a.kv = kv
			d.KV = kv
			d.Prefs = kv
		}
	}
	token, err := config.Token()
	if err != nil {
		l.Warn("remote token unavailable", slog.Any("err", err))
	}
	d.Remote = backend.NewClient(a.cfg.Remote.XHRPath, a.cfg.Remote.StaticPath, token, backend.ClientOptions{
		Timeout:     a.cfg.Remote.EffectiveTimeout(),
		TLSInsecure: a.cfg.Remote.TLSInsecure,
	})
	eng, err := xmldoc.NewEngine(a.cfg.Transform.Engine)
	if err != nil {
		return nil, err
	}
	d.Engine = eng
	a.ctl = persist.New(d)
	return a.ctl, nil
}

// await waits for op. An aborted operation is not an error.
func (a *app) await(ctx context.Context, op *persist.Op) (persist.Outcome, error) {
	out, err := op.Wait(ctx)
	if err != nil {
		return out, err
	}
	switch {
	case out.Err == nil:
		return out, nil
	case errors.Is(out.Err, domain.ErrEmptyInput):
		return out, nil
	default:
		return out, reported{out.Err}
	}
}

func (a *app) close() {
	if a.ctl != nil {
		a.ctl.Close()
	}
	if a.kv != nil {
		_ = a.kv.Close()
	}
	telemetry.Flush(context.Background())
}

// console stands in for the designer's window, dialogs and output area.
type console struct {
	mu   sync.Mutex
	in   *bufio.Reader
	out  io.Writer
	errw io.Writer
}

func (c *console) SetTitle(title string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, _ = fmt.Fprintf(c.errw, "diagram: %s\n", title)
}

func (c *console) ShowBusy()    { applog.WithComponent("cli").Debug("busy") }
func (c *console) HideBusy()    { applog.WithComponent("cli").Debug("idle") }
func (c *console) CloseDialog() {}

func (c *console) Show(text string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !strings.HasSuffix(text, "\n") {
		text += "\n"
	}
	_, _ = io.WriteString(c.out, text)
}

func (c *console) Alert(msg string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, _ = fmt.Fprintln(c.errw, msg)
}

// Prompt reads one line. An empty line accepts def; end of input cancels.
func (c *console) Prompt(title, def string) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if def != "" {
		_, _ = fmt.Fprintf(c.errw, "%s [%s]: ", title, def)
	} else {
		_, _ = fmt.Fprintf(c.errw, "%s: ", title)
	}
	line, err := c.in.ReadString('\n')
	if err != nil && line == "" {
		_, _ = fmt.Fprintln(c.errw)
		return "", false
	}
	if line = strings.TrimSpace(line); line == "" {
		return def, true
	}
	return line, true
}
