/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package storage

import (
	"errors"
	"sync"
)

// ErrNotFound is returned when a diagram does not exist.
var ErrNotFound = errors.New("not found")

// KV is a string key/value store. Keys enumerates in insertion order;
// overwriting a key keeps its position.
type KV interface {
	Available() bool
	Get(key string) (string, bool, error)
	Set(key, value string) error
	Keys() ([]string, error)
}

// Preferences is the option store of the owning application.
type Preferences interface {
	GetOption(name string) string
	SetOption(name, value string)
}

// MemoryKV is a KV kept in process memory. The zero value is ready to use.
type MemoryKV struct {
	mu    sync.Mutex
	keys  []string
	vals  map[string]string
	opts  map[string]string
	limit int

	// Disabled makes Available report false.
	Disabled bool
}

// NewMemoryKV returns a store whose Set fails once the total value size would exceed quota.
// A quota of 0 means unlimited.
func NewMemoryKV(quota int) *MemoryKV { return &MemoryKV{limit: quota} }

func (m *MemoryKV) Available() bool { return m != nil && !m.Disabled }

func (m *MemoryKV) Get(key string) (string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.vals[key]
	return v, ok, nil
}

// ErrQuotaExceeded is returned by MemoryKV.Set when the quota is exhausted.
var ErrQuotaExceeded = errors.New("quota exceeded")

func (m *MemoryKV) Set(key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.vals == nil {
		m.vals = map[string]string{}
	}
	if m.limit > 0 {
		total := len(value)
		for k, v := range m.vals {
			if k != key {
				total += len(v)
			}
		}
		if total > m.limit {
			return ErrQuotaExceeded
		}
	}
	if _, ok := m.vals[key]; !ok {
		m.keys = append(m.keys, key)
	}
	m.vals[key] = value
	return nil
}

func (m *MemoryKV) Keys() ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.keys))
	copy(out, m.keys)
	return out, nil
}

func (m *MemoryKV) GetOption(name string) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.opts[name]
}

func (m *MemoryKV) SetOption(name, value string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.opts == nil {
		m.opts = map[string]string{}
	}
	m.opts[name] = value
}
