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
	"fmt"
	"log/slog"
	"runtime/debug"
	"strings"

	"sqldesigner/internal/domain"
	"sqldesigner/internal/xmldoc"
)

// TextSave writes the serialized document to the output surface.
func (c *Controller) TextSave() *Op {
	return c.run(domain.ActionTextSave, func(_ context.Context, op *Op, _ *slog.Logger) {
		xml := c.tc.Serialize()
		c.d.Output.Show(xml)
		c.finish(op, Outcome{Action: domain.ActionTextSave, Payload: xml})
	})
}

// TextLoad hydrates the document from literal XML.
func (c *Controller) TextLoad(text string) *Op {
	return c.run(domain.ActionTextLoad, func(_ context.Context, op *Op, _ *slog.Logger) {
		out := Outcome{Action: domain.ActionTextLoad}
		if text == "" {
			c.d.Notifier.Alert("No input")
			out.Err = domain.ErrEmptyInput
			c.finish(op, out)
			return
		}
		out.Err = c.tc.FromText(text)
		c.finish(op, out)
	})
}

// TextSQL fetches the transform artifact for the configured database family,
// runs the engine over the serialized document and shows the result.
func (c *Controller) TextSQL() *Op {
	return c.run(domain.ActionTextSQL, func(ctx context.Context, op *Op, l *slog.Logger) {
		out := Outcome{Action: domain.ActionTextSQL}
		eng := c.d.Engine
		if eng == nil {
			c.fail(op, out, domain.ErrNoTransformEngine)
			return
		}
		if c.d.Remote == nil {
			c.fail(op, out, &domain.TransformError{Msg: "no static path configured"})
			return
		}
		rel := xmldoc.ArtifactPath(c.d.DB, eng)
		c.d.Window.ShowBusy()
		c.pending++
		c.setState(Pending)
		l.DebugContext(ctx, "fetching artifact", slog.String("path", rel))
		go func() {
			art, err := c.fetch(ctx, l, rel)
			posted := c.loop.Post(c.guard(ctx, l, op, func() {
				c.pending--
				c.d.Window.HideBusy()
				if err != nil {
					c.fail(op, out, &domain.TransformError{Msg: err.Error()})
					return
				}
				sql, terr := eng.Transform(c.tc.Serialize(), art)
				if terr != nil {
					c.fail(op, out, &domain.TransformError{Msg: terr.Error()})
					return
				}
				out.Payload = strings.TrimSpace(sql)
				c.d.Output.Show(out.Payload)
				c.finish(op, out)
			}))
			if !posted {
				op.complete(Outcome{Action: domain.ActionTextSQL, Err: ErrLoopStopped})
			}
		}()
	})
}

// fetch loads a transform artifact; a panic becomes an error.
func (c *Controller) fetch(ctx context.Context, l *slog.Logger, rel string) (art []byte, err error) {
	defer func() {
		if r := recover(); r != nil {
			c.panicked(ctx, l, r, debug.Stack())
			err = fmt.Errorf("%w: %v", ErrInternal, r)
		}
	}()
	return c.d.Remote.FetchArtifact(ctx, rel)
}
