/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package persist orchestrates saving and loading the schema document across the
// text buffer, the local key/value store, the remote backend and remote import.
// All controller state lives on one event loop; every operation returns an *Op
// that completes exactly once.
package persist

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"sqldesigner/internal/backend"
	"sqldesigner/internal/domain"
	applog "sqldesigner/internal/log"
	"sqldesigner/internal/storage"
	"sqldesigner/internal/telemetry"
	"sqldesigner/internal/xmldoc"
)

// KeyQuickSave is the key code of F2.
const KeyQuickSave = 113

// Prompt titles.
const (
	PromptSave   = "Save as"
	PromptLoad   = "Load diagram"
	PromptImport = "Import from database"
)

// Window is the owning application's frame.
type Window interface {
	SetTitle(title string)
	ShowBusy()
	HideBusy()
	CloseDialog()
}

// Output is the text surface shared by listings, status messages and the text buffer.
type Output interface {
	Show(text string)
}

// Prompter asks the user for a name. ok is false when the prompt was cancelled.
type Prompter interface {
	Prompt(title, def string) (name string, ok bool)
}

// Remote is the remote store protocol; *backend.Client implements it.
type Remote interface {
	Save(ctx context.Context, keyword, xml string) backend.Response
	Load(ctx context.Context, keyword string) backend.Response
	List(ctx context.Context) backend.Response
	Import(ctx context.Context, database string) backend.Response
	FetchArtifact(ctx context.Context, rel string) ([]byte, error)
}

// Deps are the controller's collaborators. Document, Window, Output, Notifier and
// Prompter are required; a nil KV makes the local medium unavailable, a nil Engine
// disables the SQL transform.
type Deps struct {
	Document xmldoc.Document
	Window   Window
	Output   Output
	Notifier xmldoc.Notifier
	Prompter Prompter
	Prefs    storage.Preferences
	KV       storage.KV
	Remote   Remote
	Engine   xmldoc.Engine
	// DB selects the transform artifact family under db/<DB>/.
	DB string

	Session   *Session
	Loop      *Loop
	Telemetry *telemetry.Client

	// OnPanic is called after a panic in an operation was recovered. The operation
	// itself completes with ErrInternal.
	OnPanic func(r any, stack []byte)
}

// ErrInternal ends an operation whose handler panicked.
var ErrInternal = errors.New("internal error")

// State is the controller's coarse lifecycle state.
type State int32

const (
	Idle State = iota
	AwaitingName
	Pending
)

func (s State) String() string {
	switch s {
	case AwaitingName:
		return "awaiting_name"
	case Pending:
		return "pending"
	default:
		return "idle"
	}
}

type Controller struct {
	d       Deps
	tc      *xmldoc.Transcoder
	session *Session
	loop    *Loop
	ownLoop bool
	ctx     context.Context
	cancel  context.CancelFunc

	state atomic.Int32
	// pending counts requests in flight; loop goroutine only.
	pending int
}

// New builds a controller. It starts its own loop unless d.Loop is set.
func New(d Deps) *Controller {
	c := &Controller{d: d, session: d.Session, loop: d.Loop}
	if c.session == nil {
		c.session = NewSession(d.Prefs)
	}
	if c.loop == nil {
		c.loop = NewLoop()
		c.ownLoop = true
	}
	c.ctx, c.cancel = context.WithCancel(context.Background())
	c.tc = xmldoc.NewTranscoder(d.Document, d.Window, d.Notifier)
	return c
}

// Close abandons requests in flight and stops an owned loop.
func (c *Controller) Close() {
	c.cancel()
	if c.ownLoop {
		c.loop.Close()
	}
}

// Session exposes the naming state.
func (c *Controller) Session() *Session { return c.session }

// State reports the current state. Safe from any goroutine.
func (c *Controller) State() State { return State(c.state.Load()) }

func (c *Controller) setState(s State) { c.state.Store(int32(s)) }

// run schedules body on the loop. body completes the op itself, possibly later.
// ctx carries the operation id into every record logged with it.
func (c *Controller) run(action domain.Action, body func(ctx context.Context, op *Op, l *slog.Logger)) *Op {
	op := newOp(action)
	ctx := applog.ContextWithOpID(c.ctx, uuid.NewString())
	l := applog.WithOperation(applog.WithComponent("persist"), string(action))
	start := time.Now()
	go func() {
		<-op.Done()
		out, _ := op.Result()
		c.report(ctx, l, out, time.Since(start))
	}()
	if !c.loop.Post(c.guard(ctx, l, op, func() { body(ctx, op, l) })) {
		op.complete(Outcome{Action: action, Err: ErrLoopStopped})
	}
	return op
}

// guard wraps a loop job so that a panic ends op with ErrInternal and the loop
// keeps serving.
func (c *Controller) guard(ctx context.Context, l *slog.Logger, op *Op, fn func()) func() {
	return func() {
		defer func() {
			r := recover()
			if r == nil {
				return
			}
			c.panicked(ctx, l, r, debug.Stack())
			c.finish(op, Outcome{Action: op.action, Err: fmt.Errorf("%w: %v", ErrInternal, r)})
		}()
		fn()
	}
}

func (c *Controller) panicked(ctx context.Context, l *slog.Logger, r any, stack []byte) {
	l.ErrorContext(ctx, "panic recovered", slog.Any("panic", r), slog.String("stack", string(stack)))
	if c.d.OnPanic != nil {
		c.d.OnPanic(r, stack)
	}
}

func (c *Controller) report(ctx context.Context, l *slog.Logger, out Outcome, took time.Duration) {
	result := "ok"
	switch {
	case out.Err == nil:
		l.InfoContext(ctx, "operation finished", slog.String("keyword", out.Keyword), slog.Duration("took", took))
	case errors.Is(out.Err, domain.ErrEmptyInput):
		result = "aborted"
		l.DebugContext(ctx, "operation aborted")
	default:
		result = "failed"
		l.WarnContext(ctx, "operation failed", slog.String("keyword", out.Keyword), slog.Any("err", out.Err))
	}
	props := map[string]any{"result": result, "ms": took.Milliseconds()}
	if c.d.Telemetry != nil {
		c.d.Telemetry.Event("persist."+string(out.Action), props)
	} else {
		telemetry.Event("persist."+string(out.Action), props)
	}
}

// finish completes op on the loop and settles the state: Pending while other
// requests are still in flight, Idle otherwise.
func (c *Controller) finish(op *Op, out Outcome) {
	if c.pending > 0 {
		c.setState(Pending)
	} else {
		c.setState(Idle)
	}
	op.complete(out)
}

// fail reports err to the user through the notifier and completes op.
func (c *Controller) fail(op *Op, out Outcome, err error) {
	out.Err = err
	c.d.Notifier.Alert(err.Error())
	c.finish(op, out)
}

// promptName asks for a name. It returns "" when the user cancelled or entered nothing.
func (c *Controller) promptName(title, def string) string {
	c.setState(AwaitingName)
	name, ok := c.d.Prompter.Prompt(title, def)
	if !ok {
		return ""
	}
	return name
}

// check interprets code and writes a failure category to the output surface.
func (c *Controller) check(code int) Verdict {
	v := Interpret(code)
	if !v.OK {
		c.d.Output.Show("Server response: " + v.Category)
	}
	return v
}

// KeyPress handles global shortcuts and reports whether the key was consumed;
// the caller then suppresses the key's default action.
func (c *Controller) KeyPress(code int) (*Op, bool) {
	switch code {
	case KeyQuickSave:
		return c.QuickSave(), true
	}
	return nil, false
}
