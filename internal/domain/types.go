/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package domain

// This file defines the small vocabulary shared by the persistence
// controller, its backends and the server: media, actions and keywords.

import "strings"

// LocalKeyPrefix namespaces designer entries in the local key-value store so
// they do not collide with unrelated data kept there.
const LocalKeyPrefix = "wwwsqldesigner_databases_"

// LocalSizeLimit is the serialized size at or above which a local save is
// refused. Some hosts cap a single key at 5 MiB; half of that is the bound.
const LocalSizeLimit = 5 * 1024 * 1024 / 2

// SuccessCode is the synthetic outcome code reported by the synchronous media.
const SuccessCode = 200

// Medium identifies one of the places a schema can be stored or rendered to.
type Medium string

const (
	MediumText   Medium = "text"
	MediumLocal  Medium = "local"
	MediumRemote Medium = "remote"
	MediumImport Medium = "import"
)

// Action is a single persistence operation. Remote actions double as the
// value of the backend "action" query parameter.
type Action string

const (
	ActionSave   Action = "save"
	ActionLoad   Action = "load"
	ActionList   Action = "list"
	ActionImport Action = "import"

	ActionLocalSave Action = "local_save"
	ActionLocalLoad Action = "local_load"
	ActionLocalList Action = "local_list"
	ActionTextSave  Action = "text_save"
	ActionTextLoad  Action = "text_load"
	ActionTextSQL   Action = "text_sql"
)

// Medium reports which medium an action belongs to.
func (a Action) Medium() Medium {
	switch a {
	case ActionSave, ActionLoad, ActionList:
		return MediumRemote
	case ActionImport:
		return MediumImport
	case ActionLocalSave, ActionLocalLoad, ActionLocalList:
		return MediumLocal
	default:
		return MediumText
	}
}

// Remote reports whether the action is carried out by the HTTP backend.
func (a Action) Remote() bool {
	m := a.Medium()
	return m == MediumRemote || m == MediumImport
}

// LocalKey derives the local store key for keyword.
func LocalKey(keyword string) string { return LocalKeyPrefix + keyword }

// KeywordFromLocalKey strips the namespace prefix. ok is false for keys that
// do not belong to the designer.
func KeywordFromLocalKey(key string) (string, bool) {
	if !strings.HasPrefix(key, LocalKeyPrefix) {
		return "", false
	}
	return key[len(LocalKeyPrefix):], true
}

// SanitizeName keeps only [A-Za-z0-9_-], the character set the server accepts
// for diagram file names.
func SanitizeName(name string) string {
	var b strings.Builder
	b.Grow(len(name))
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_', r == '-':
			b.WriteRune(r)
		}
	}
	return b.String()
}
