/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package xmldoc

import (
	"embed"
	"io/fs"
	"path"
)

//go:embed artifacts
var artifactFS embed.FS

// Artifacts is the built-in static tree: db/<db>/output.<ext> transform artifacts
// and default.xml, the diagram a fresh server is seeded with.
func Artifacts() fs.FS {
	sub, err := fs.Sub(artifactFS, "artifacts")
	if err != nil {
		panic(err) // embedded path is fixed at build time
	}
	return sub
}

// ArtifactPath is the location of an engine's artifact for db, relative to the static path.
func ArtifactPath(db string, e Engine) string {
	return path.Join("db", db, "output."+e.ArtifactExt())
}

// DefaultDiagram returns the embedded seed diagram.
func DefaultDiagram() []byte {
	b, _ := fs.ReadFile(Artifacts(), "default.xml")
	return b
}
