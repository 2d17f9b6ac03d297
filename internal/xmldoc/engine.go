/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package xmldoc

import (
	"bytes"
	"fmt"
	"strings"
	"text/template"
)

// Engine turns the designer XML into SQL using an artifact fetched from the static path
// (db/<db>/output.<ArtifactExt>).
type Engine interface {
	Name() string
	ArtifactExt() string
	Transform(xml string, artifact []byte) (string, error)
}

// NewEngine resolves the configured engine name. "none" and "" yield a nil Engine
// so callers report that no transform is available.
func NewEngine(name string) (Engine, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "none":
		return nil, nil
	case "template":
		return TemplateEngine{}, nil
	case "js":
		return NewJSEngine(), nil
	default:
		return nil, fmt.Errorf("unknown transform engine %q", name)
	}
}

// TemplateEngine executes a text/template artifact against the parsed Schema.
type TemplateEngine struct{}

func (TemplateEngine) Name() string        { return "template" }
func (TemplateEngine) ArtifactExt() string { return "tmpl" }

func (TemplateEngine) Transform(xml string, artifact []byte) (string, error) {
	tree, err := Parse(xml)
	if err != nil {
		return "", err
	}
	tpl, err := template.New("output").Funcs(templateFuncs).Option("missingkey=error").Parse(string(artifact))
	if err != nil {
		return "", fmt.Errorf("parse artifact: %w", err)
	}
	var buf bytes.Buffer
	if err := tpl.Execute(&buf, ReadSchema(tree.Root())); err != nil {
		return "", fmt.Errorf("execute artifact: %w", err)
	}
	return buf.String(), nil
}

var templateFuncs = template.FuncMap{
	"upper":    strings.ToUpper,
	"lower":    strings.ToLower,
	"join":     strings.Join,
	"quote":    func(s string) string { return `"` + strings.ReplaceAll(s, `"`, `""`) + `"` },
	"backtick": func(s string) string { return "`" + strings.ReplaceAll(s, "`", "``") + "`" },
	"quoteAll": func(parts []string) string {
		q := make([]string, len(parts))
		for i, p := range parts {
			q[i] = `"` + strings.ReplaceAll(p, `"`, `""`) + `"`
		}
		return strings.Join(q, ", ")
	},
	"backtickAll": func(parts []string) string {
		q := make([]string, len(parts))
		for i, p := range parts {
			q[i] = "`" + strings.ReplaceAll(p, "`", "``") + "`"
		}
		return strings.Join(q, ", ")
	},
	"sqlString": func(s string) string { return "'" + strings.ReplaceAll(s, "'", "''") + "'" },
}
