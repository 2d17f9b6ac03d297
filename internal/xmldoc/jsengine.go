/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package xmldoc

import (
	"errors"
	"fmt"
	"time"

	"github.com/dop251/goja"
)

// JSEngine runs a JavaScript artifact that defines transform(xml, schema) and returns the SQL text.
// Each call gets a fresh runtime.
type JSEngine struct {
	// Timeout interrupts runaway artifacts. Zero disables it.
	Timeout time.Duration
}

func NewJSEngine() *JSEngine { return &JSEngine{Timeout: 10 * time.Second} }

func (*JSEngine) Name() string        { return "js" }
func (*JSEngine) ArtifactExt() string { return "js" }

var errTimeout = errors.New("transform timed out")

func (e *JSEngine) Transform(xml string, artifact []byte) (string, error) {
	tree, err := Parse(xml)
	if err != nil {
		return "", err
	}
	schema := ReadSchema(tree.Root())

	vm := goja.New()
	vm.SetFieldNameMapper(goja.TagFieldNameMapper("json", true))
	if e.Timeout > 0 {
		timer := time.AfterFunc(e.Timeout, func() { vm.Interrupt(errTimeout) })
		defer timer.Stop()
	}
	if _, err := vm.RunScript("output.js", string(artifact)); err != nil {
		return "", jsError(err)
	}
	fn, ok := goja.AssertFunction(vm.Get("transform"))
	if !ok {
		return "", errors.New("artifact does not define transform()")
	}
	out, err := fn(goja.Undefined(), vm.ToValue(xml), vm.ToValue(schema))
	if err != nil {
		return "", jsError(err)
	}
	return out.String(), nil
}

func jsError(err error) error {
	var ie *goja.InterruptedError
	if errors.As(err, &ie) {
		return fmt.Errorf("artifact interrupted: %v", ie.Value())
	}
	var ex *goja.Exception
	if errors.As(err, &ex) {
		return fmt.Errorf("artifact error: %s", ex.Value().String())
	}
	return err
}
