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
	"sync"

	"sqldesigner/internal/domain"
)

// Outcome is the result of one controller operation.
type Outcome struct {
	Action  domain.Action
	Keyword string
	// Payload is the text shown to the user, if any: a listing, the serialized document
	// or the generated SQL.
	Payload string
	Err     error
}

// OK reports whether the operation succeeded.
func (o Outcome) OK() bool { return o.Err == nil }

// Op is a single-shot future. It completes exactly once.
type Op struct {
	action domain.Action
	done   chan struct{}
	once   sync.Once
	out    Outcome
}

func newOp(action domain.Action) *Op {
	return &Op{action: action, done: make(chan struct{}), out: Outcome{Action: action}}
}

func (o *Op) complete(out Outcome) bool {
	fired := false
	o.once.Do(func() {
		o.out = out
		fired = true
		close(o.done)
	})
	return fired
}

// Done is closed when the outcome is known.
func (o *Op) Done() <-chan struct{} { return o.done }

// Result returns the outcome and whether it is final.
func (o *Op) Result() (Outcome, bool) {
	select {
	case <-o.done:
		return o.out, true
	default:
		return Outcome{}, false
	}
}

// Wait blocks until the outcome is known or ctx ends.
func (o *Op) Wait(ctx context.Context) (Outcome, error) {
	select {
	case <-o.done:
		return o.out, nil
	case <-ctx.Done():
		return Outcome{}, ctx.Err()
	}
}
