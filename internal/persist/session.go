/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package persist

import (
	"sync"

	"sqldesigner/internal/storage"
)

// Preference names of the two naming slots.
const (
	OptLastRemoteName = "lastRemoteName"
	OptLastUsedName   = "lastUsedName"
)

// Session holds the last-used keyword per medium. Each slot is written to the
// preference store and mirrored in memory in case preferences are not persisted.
type Session struct {
	prefs storage.Preferences

	mu     sync.Mutex
	remote string
	local  string
}

// NewSession returns a session over prefs; prefs may be nil.
func NewSession(prefs storage.Preferences) *Session {
	return &Session{prefs: prefs}
}

func (s *Session) option(name string) string {
	if s.prefs == nil {
		return ""
	}
	return s.prefs.GetOption(name)
}

// Current is the in-session remote name, used by quicksave.
func (s *Session) Current() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.remote
}

// RemoteDefault pre-fills remote prompts.
func (s *Session) RemoteDefault() string {
	if v := s.option(OptLastRemoteName); v != "" {
		return v
	}
	return s.Current()
}

func (s *Session) SetRemote(name string) {
	if name == "" {
		return
	}
	s.mu.Lock()
	s.remote = name
	s.mu.Unlock()
	if s.prefs != nil {
		s.prefs.SetOption(OptLastRemoteName, name)
	}
}

// LocalDefault pre-fills local prompts.
func (s *Session) LocalDefault() string {
	if v := s.option(OptLastUsedName); v != "" {
		return v
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.local
}

func (s *Session) SetLocal(name string) {
	if name == "" {
		return
	}
	s.mu.Lock()
	s.local = name
	s.mu.Unlock()
	if s.prefs != nil {
		s.prefs.SetOption(OptLastUsedName, name)
	}
}
