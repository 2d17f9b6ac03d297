/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package persist

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"

	"sqldesigner/internal/backend"
	"sqldesigner/internal/domain"
)

// ServerSave stores the document remotely. An empty keyword prompts, pre-filled with
// the last remote name.
func (c *Controller) ServerSave(keyword string) *Op {
	return c.run(domain.ActionSave, func(ctx context.Context, op *Op, l *slog.Logger) {
		c.serverSave(ctx, op, l, keyword)
	})
}

// QuickSave repeats the last remote save under the in-session name. It prompts only
// when no name is known yet.
func (c *Controller) QuickSave() *Op {
	return c.run(domain.ActionSave, func(ctx context.Context, op *Op, l *slog.Logger) {
		c.serverSave(ctx, op, l, c.session.Current())
	})
}

func (c *Controller) serverSave(ctx context.Context, op *Op, l *slog.Logger, keyword string) {
	name := c.resolveRemoteName(keyword, PromptSave)
	if name == "" {
		c.finish(op, Outcome{Action: domain.ActionSave, Err: domain.ErrEmptyInput})
		return
	}
	xml := c.tc.Serialize()
	c.d.Window.SetTitle(name)
	c.dispatch(ctx, op, l, name, func() backend.Response { return c.d.Remote.Save(ctx, name, xml) })
}

// ServerLoad replaces the document with the remote diagram named keyword.
func (c *Controller) ServerLoad(keyword string) *Op {
	return c.run(domain.ActionLoad, func(ctx context.Context, op *Op, l *slog.Logger) {
		name := c.resolveRemoteName(keyword, PromptLoad)
		if name == "" {
			c.finish(op, Outcome{Action: domain.ActionLoad, Err: domain.ErrEmptyInput})
			return
		}
		c.dispatch(ctx, op, l, name, func() backend.Response { return c.d.Remote.Load(ctx, name) })
	})
}

// ServerList shows the remote diagram names.
func (c *Controller) ServerList() *Op {
	return c.run(domain.ActionList, func(ctx context.Context, op *Op, l *slog.Logger) {
		c.dispatch(ctx, op, l, "", func() backend.Response { return c.d.Remote.List(ctx) })
	})
}

// ServerImport builds the document from a live database known to the backend
// and realigns the layout. An empty name prompts with no default.
func (c *Controller) ServerImport(database string) *Op {
	return c.run(domain.ActionImport, func(ctx context.Context, op *Op, l *slog.Logger) {
		name := database
		if name == "" {
			name = c.promptName(PromptImport, "")
		}
		if name == "" {
			c.finish(op, Outcome{Action: domain.ActionImport, Err: domain.ErrEmptyInput})
			return
		}
		c.dispatch(ctx, op, l, name, func() backend.Response { return c.d.Remote.Import(ctx, name) })
	})
}

var errNoRemote = errors.New("no remote backend configured")

func (c *Controller) resolveRemoteName(keyword, title string) string {
	if keyword != "" {
		return keyword
	}
	return c.promptName(title, c.session.RemoteDefault())
}

// dispatch shows the busy indicator and runs req off the loop. The response is
// handled back on the loop.
func (c *Controller) dispatch(ctx context.Context, op *Op, l *slog.Logger, keyword string, req func() backend.Response) {
	if c.d.Remote == nil {
		c.fail(op, Outcome{Action: op.action, Keyword: keyword}, errNoRemote)
		return
	}
	c.d.Window.ShowBusy()
	c.pending++
	c.setState(Pending)
	l.DebugContext(ctx, "request dispatched", slog.String("keyword", keyword))
	go func() {
		res := c.request(ctx, l, req)
		if res.Action == "" {
			res.Action = op.action
		}
		if !c.loop.Post(c.guard(ctx, l, op, func() { c.handleResponse(op, res, keyword) })) {
			op.complete(Outcome{Action: res.Action, Keyword: keyword, Err: ErrLoopStopped})
		}
	}()
}

// request runs req; a panic becomes a failed response.
func (c *Controller) request(ctx context.Context, l *slog.Logger, req func() backend.Response) (res backend.Response) {
	defer func() {
		if r := recover(); r != nil {
			c.panicked(ctx, l, r, debug.Stack())
			res = backend.Response{Err: fmt.Errorf("%w: %v", ErrInternal, r)}
		}
	}()
	return req()
}

// handleResponse is the single continuation for every remote action.
func (c *Controller) handleResponse(op *Op, res backend.Response, keyword string) {
	c.pending--
	c.d.Window.HideBusy()
	out := Outcome{Action: res.Action, Keyword: keyword}

	if res.Err != nil {
		out.Err = fmt.Errorf("request failed: %w", res.Err)
		c.d.Output.Show(out.Err.Error())
		c.finish(op, out)
		return
	}
	if v := c.check(res.Code); !v.OK {
		out.Err = &domain.StatusError{Code: res.Code, Category: v.Category}
		c.finish(op, out)
		return
	}

	switch res.Action {
	case domain.ActionSave:
		c.session.SetRemote(keyword)
	case domain.ActionLoad:
		if out.Err = c.tc.FromTree(res.Tree); out.Err == nil {
			c.d.Window.SetTitle(keyword)
			c.session.SetRemote(keyword)
		}
	case domain.ActionList:
		out.Payload = res.Body
		c.d.Output.Show(res.Body)
	case domain.ActionImport:
		if out.Err = c.tc.FromTree(res.Tree); out.Err == nil {
			c.d.Document.RealignLayout()
		}
	default:
		out.Err = fmt.Errorf("unexpected response for action %q", res.Action)
	}
	c.finish(op, out)
}
