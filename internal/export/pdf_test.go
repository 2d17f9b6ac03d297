/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package export

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"sqldesigner/internal/xmldoc"
)

func sampleSchema(t *testing.T) *xmldoc.Schema {
	t.Helper()
	tree, err := xmldoc.Parse(string(xmldoc.DefaultDiagram()))
	if err != nil {
		t.Fatalf("parse default diagram: %v", err)
	}
	s := xmldoc.ReadSchema(tree.Root())
	return &s
}

func TestWriteSQLPDF_SinglePage(t *testing.T) {
	var buf bytes.Buffer
	pages, err := WriteSQLPDF(&buf, nil, "CREATE TABLE \"users\" (\n  \"id\" SERIAL\n);", PDFOptions{Title: "shop"})
	if err != nil {
		t.Fatalf("export: %v", err)
	}
	if pages != 1 {
		t.Fatalf("pages = %d", pages)
	}
	if !bytes.HasPrefix(buf.Bytes(), []byte("%PDF-")) {
		t.Fatalf("not a pdf")
	}
}

func TestWriteSQLPDF_LongListingAndDiagram(t *testing.T) {
	sql := strings.Repeat("ALTER TABLE \"orders\" ADD FOREIGN KEY (\"user_id\") REFERENCES \"users\" (\"id\");\n", 200)
	var plain, withDiagram bytes.Buffer
	n, err := WriteSQLPDF(&plain, sampleSchema(t), sql, PDFOptions{})
	if err != nil {
		t.Fatalf("export: %v", err)
	}
	if n < 2 {
		t.Fatalf("expected the listing to wrap onto several pages, got %d", n)
	}
	m, err := WriteSQLPDF(&withDiagram, sampleSchema(t), sql, PDFOptions{Diagram: true})
	if err != nil {
		t.Fatalf("export with diagram: %v", err)
	}
	if m != n+1 {
		t.Fatalf("diagram page missing: %d vs %d", m, n)
	}
}

func TestExportSQLPDF_CreatesFile(t *testing.T) {
	out := filepath.Join(t.TempDir(), "exports", "schema.pdf")
	if err := ExportSQLPDF(out, sampleSchema(t), "SELECT 1;", PDFOptions{Diagram: true}); err != nil {
		t.Fatalf("export: %v", err)
	}
	st, err := os.Stat(out)
	if err != nil {
		t.Fatalf("stat: %v", err)
	}
	if st.Size() == 0 {
		t.Fatalf("pdf file empty")
	}
	entries, _ := os.ReadDir(filepath.Dir(out))
	if len(entries) != 1 {
		t.Fatalf("temp files left behind: %v", entries)
	}
}
