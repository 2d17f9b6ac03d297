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
	"log/slog"
	"strings"

	"sqldesigner/internal/domain"
)

const msgStoreUnavailable = "Sorry, the local store is not available."

func (c *Controller) localAvailable() bool {
	return c.d.KV != nil && c.d.KV.Available()
}

// LocalSave writes the document to the local store under a prompted name and
// verifies the write by reading it back.
func (c *Controller) LocalSave() *Op {
	return c.run(domain.ActionLocalSave, func(ctx context.Context, op *Op, l *slog.Logger) {
		out := Outcome{Action: domain.ActionLocalSave}
		if !c.localAvailable() {
			c.fail(op, out, domain.ErrStoreUnavailable)
			return
		}
		xml := c.tc.Serialize()
		if len(xml) >= domain.LocalSizeLimit {
			out.Err = domain.ErrSizeWarning
			c.d.Notifier.Alert("Warning: your database structure is above 2.5 megabytes in size, " +
				"which exceeds the single key limit of some local stores.")
			c.finish(op, out)
			return
		}
		name := c.promptName(PromptSave, c.session.LocalDefault())
		if name == "" {
			out.Err = domain.ErrEmptyInput
			c.finish(op, out)
			return
		}
		out.Keyword = name
		key := domain.LocalKey(name)
		if err := c.d.KV.Set(key, xml); err != nil {
			c.localFail(op, out, "saving database structure to", &domain.StoreError{Op: "save", Err: err})
			return
		}
		got, ok, err := c.d.KV.Get(key)
		if err != nil {
			c.localFail(op, out, "saving database structure to", &domain.StoreError{Op: "verify", Err: err})
			return
		}
		if !ok || got != xml {
			c.localFail(op, out, "saving database structure to", domain.ErrVerificationFailed)
			return
		}
		l.DebugContext(ctx, "local write verified", slog.String("key", key), slog.Int("bytes", len(xml)))
		c.session.SetLocal(name)
		c.finish(op, out)
	})
}

// LocalLoad reads a prompted name from the local store into the document.
func (c *Controller) LocalLoad() *Op {
	return c.run(domain.ActionLocalLoad, func(_ context.Context, op *Op, _ *slog.Logger) {
		out := Outcome{Action: domain.ActionLocalLoad}
		if !c.localAvailable() {
			c.fail(op, out, domain.ErrStoreUnavailable)
			return
		}
		name := c.promptName(PromptLoad, c.session.LocalDefault())
		if name == "" {
			out.Err = domain.ErrEmptyInput
			c.finish(op, out)
			return
		}
		out.Keyword = name
		xml, ok, err := c.d.KV.Get(domain.LocalKey(name))
		if err != nil {
			c.localFail(op, out, "loading database structure from", &domain.StoreError{Op: "load", Err: err})
			return
		}
		if !ok || xml == "" {
			c.localFail(op, out, "loading database structure from", domain.ErrNoData)
			return
		}
		if out.Err = c.tc.FromText(xml); out.Err == nil {
			c.session.SetLocal(name)
		}
		c.finish(op, out)
	})
}

// LocalList shows the names stored in the local store, one per line.
func (c *Controller) LocalList() *Op {
	return c.run(domain.ActionLocalList, func(_ context.Context, op *Op, _ *slog.Logger) {
		out := Outcome{Action: domain.ActionLocalList}
		if !c.localAvailable() {
			c.fail(op, out, domain.ErrStoreUnavailable)
			return
		}
		keys, err := c.d.KV.Keys()
		if err != nil {
			c.localFail(op, out, "loading database names from", &domain.StoreError{Op: "list", Err: err})
			return
		}
		var b strings.Builder
		for _, k := range keys {
			if name, ok := domain.KeywordFromLocalKey(k); ok {
				b.WriteString(name)
				b.WriteByte('\n')
			}
		}
		if b.Len() == 0 {
			c.localFail(op, out, "loading database names from", domain.ErrNoData)
			return
		}
		out.Payload = b.String()
		c.d.Output.Show(out.Payload)
		c.finish(op, out)
	})
}

func (c *Controller) localFail(op *Op, out Outcome, what string, err error) {
	out.Err = err
	c.d.Notifier.Alert("Error " + what + " the local store! (" + err.Error() + ")")
	c.finish(op, out)
}
