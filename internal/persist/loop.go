/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package persist

import (
	"errors"
	"sync"

	"github.com/dop251/goja"
	"github.com/dop251/goja_nodejs/eventloop"
)

// ErrLoopStopped is returned for work submitted after the loop was closed.
var ErrLoopStopped = errors.New("event loop not running")

// Loop is the single goroutine all controller state lives on. Remote requests run
// elsewhere and post their continuation back here.
type Loop struct {
	el *eventloop.EventLoop

	mu      sync.RWMutex
	stopped bool
}

// NewLoop starts a loop.
func NewLoop() *Loop {
	el := eventloop.NewEventLoop()
	el.Start()
	return &Loop{el: el}
}

// Post schedules fn on the loop. It reports false when the loop is stopped.
func (l *Loop) Post(fn func()) bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if l.stopped {
		return false
	}
	return l.el.RunOnLoop(func(*goja.Runtime) { fn() })
}

// Sync runs fn on the loop and waits for it. It must not be called from the loop itself.
func (l *Loop) Sync(fn func()) error {
	done := make(chan struct{})
	if !l.Post(func() { defer close(done); fn() }) {
		return ErrLoopStopped
	}
	<-done
	return nil
}

// Close stops the loop after the job in progress. Safe to call multiple times.
func (l *Loop) Close() {
	l.mu.Lock()
	if l.stopped {
		l.mu.Unlock()
		return
	}
	l.stopped = true
	l.mu.Unlock()
	l.el.Stop()
}
