/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package domain

import (
	"errors"
	"fmt"
)

// Failures of the persistence media. Every one of them is reported to the
// user once by the controller and never propagates further as a panic.
var (
	// ErrEmptyInput indicates an empty or cancelled name/text; the operation is abandoned.
	ErrEmptyInput = errors.New("empty input")

	// ErrStoreUnavailable indicates the local key-value store cannot be used at all.
	ErrStoreUnavailable = errors.New("local store unavailable")

	// ErrSizeWarning indicates the serialized schema is too large for a single local key.
	ErrSizeWarning = errors.New("schema too large for local store")

	// ErrVerificationFailed indicates a local write could not be read back unchanged.
	ErrVerificationFailed = errors.New("content verification failed")

	// ErrNoData indicates nothing is stored under the requested name, or no names exist.
	ErrNoData = errors.New("no data available")

	// ErrNoTransformEngine indicates no transform engine was configured.
	ErrNoTransformEngine = errors.New("no transform engine available")
)

// ParseError reports a malformed or rootless document.
type ParseError struct {
	Msg string
}

func (e *ParseError) Error() string { return "XML error: " + e.Msg }

// StoreError wraps a failure reported by the local store.
type StoreError struct {
	Op  string
	Err error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("local store %s: %v", e.Op, e.Err)
}

func (e *StoreError) Unwrap() error { return e.Err }

// TransformError reports a failure while fetching or running a transform artifact.
type TransformError struct {
	Msg string
}

func (e *TransformError) Error() string { return "transform: " + e.Msg }

// StatusError carries a backend status code that maps to a failure category.
type StatusError struct {
	Code     int
	Category string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("server response %d: %s", e.Code, e.Category)
}
