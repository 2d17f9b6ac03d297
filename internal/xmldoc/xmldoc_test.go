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
	"io/fs"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/beevik/etree"

	"sqldesigner/internal/domain"
)

type fakeDialogs struct{ closed int }

func (f *fakeDialogs) CloseDialog() { f.closed++ }

type fakeNotifier struct{ msgs []string }

func (f *fakeNotifier) Alert(msg string) { f.msgs = append(f.msgs, msg) }

type failingDoc struct{ RawDocument }

func (*failingDoc) FromXML(*etree.Element) error { return errors.New("unknown element <foo>") }

func TestRoundTripPreservesSchema(t *testing.T) {
	src := NewRawDocument(string(DefaultDiagram()))
	dst := NewRawDocument("")
	dlg := &fakeDialogs{}
	tc := NewTranscoder(dst, dlg, &fakeNotifier{})
	if err := tc.FromText(NewTranscoder(src, nil, nil).Serialize()); err != nil {
		t.Fatalf("FromText: %v", err)
	}
	if dlg.closed != 1 {
		t.Fatalf("CloseDialog called %d times, want 1", dlg.closed)
	}
	a, _ := Parse(src.ToXML())
	b, _ := Parse(dst.ToXML())
	if !reflect.DeepEqual(ReadSchema(a.Root()), ReadSchema(b.Root())) {
		t.Fatalf("schema changed across round trip:\n%s\n---\n%s", src.ToXML(), dst.ToXML())
	}
	// a second trip is textually stable
	first := dst.ToXML()
	if err := tc.FromText(first); err != nil {
		t.Fatalf("FromText again: %v", err)
	}
	if dst.ToXML() != first {
		t.Fatalf("second round trip changed text")
	}
}

func TestFromTextMalformedReportsParseError(t *testing.T) {
	doc := NewRawDocument("<sql/>")
	dlg := &fakeDialogs{}
	note := &fakeNotifier{}
	err := NewTranscoder(doc, dlg, note).FromText("<sql><table></sql>")
	var pe *domain.ParseError
	if !errors.As(err, &pe) {
		t.Fatalf("err = %v, want ParseError", err)
	}
	if len(note.msgs) != 1 || !strings.HasPrefix(note.msgs[0], "XML error: ") {
		t.Fatalf("notifier messages = %q", note.msgs)
	}
	if dlg.closed != 0 {
		t.Fatalf("dialog closed on failure")
	}
	if doc.ToXML() != "<sql/>" {
		t.Fatalf("document mutated on failure: %q", doc.ToXML())
	}
}

func TestFromTreeNullDocument(t *testing.T) {
	for name, tree := range map[string]*etree.Document{"nil": nil, "rootless": etree.NewDocument()} {
		note := &fakeNotifier{}
		err := NewTranscoder(NewRawDocument(""), &fakeDialogs{}, note).FromTree(tree)
		if err == nil || err.Error() != "XML error: Null document" {
			t.Fatalf("%s: err = %v", name, err)
		}
		if len(note.msgs) != 1 || note.msgs[0] != "XML error: Null document" {
			t.Fatalf("%s: notifier = %q", name, note.msgs)
		}
	}
}

func TestFromTreeHydrationFailureIsParseError(t *testing.T) {
	tree, err := Parse("<sql><foo/></sql>")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	dlg := &fakeDialogs{}
	err = NewTranscoder(&failingDoc{}, dlg, &fakeNotifier{}).FromTree(tree)
	var pe *domain.ParseError
	if !errors.As(err, &pe) || pe.Msg != "unknown element <foo>" {
		t.Fatalf("err = %v", err)
	}
	if dlg.closed != 0 {
		t.Fatalf("dialog closed on failure")
	}
}

const usersDDL = `CREATE TABLE "users" (
  "id" SERIAL NOT NULL,
  "login" VARCHAR(64) NOT NULL,
  PRIMARY KEY ("id"),
  UNIQUE ("login")
);`

const ordersFK = `ALTER TABLE "orders" ADD FOREIGN KEY ("user_id") REFERENCES "users" ("id");`

func TestTemplateEnginePostgres(t *testing.T) {
	art, err := fs.ReadFile(Artifacts(), ArtifactPath("postgresql", TemplateEngine{}))
	if err != nil {
		t.Fatalf("read artifact: %v", err)
	}
	out, err := TemplateEngine{}.Transform(string(DefaultDiagram()), art)
	if err != nil {
		t.Fatalf("Transform: %v", err)
	}
	for _, want := range []string{usersDDL, ordersFK, `"note" TEXT,`} {
		if !strings.Contains(out, want) {
			t.Fatalf("output missing %q:\n%s", want, out)
		}
	}
}

func TestTemplateEngineMySQL(t *testing.T) {
	art, err := fs.ReadFile(Artifacts(), "db/mysql/output.tmpl")
	if err != nil {
		t.Fatalf("read artifact: %v", err)
	}
	out, err := TemplateEngine{}.Transform(string(DefaultDiagram()), art)
	if err != nil {
		t.Fatalf("Transform: %v", err)
	}
	if !strings.Contains(out, "`id` INTEGER NOT NULL AUTO_INCREMENT,") {
		t.Fatalf("unexpected output:\n%s", out)
	}
}

func TestTemplateEngineRejectsBadArtifact(t *testing.T) {
	if _, err := (TemplateEngine{}).Transform("<sql/>", []byte("{{ range }")); err == nil {
		t.Fatalf("expected parse error for broken template")
	}
	if _, err := (TemplateEngine{}).Transform("<sql", []byte("x")); err == nil {
		t.Fatalf("expected parse error for broken xml")
	}
}

func TestJSEngineMatchesTemplate(t *testing.T) {
	e := NewJSEngine()
	art, err := fs.ReadFile(Artifacts(), ArtifactPath("postgresql", e))
	if err != nil {
		t.Fatalf("read artifact: %v", err)
	}
	out, err := e.Transform(string(DefaultDiagram()), art)
	if err != nil {
		t.Fatalf("Transform: %v", err)
	}
	for _, want := range []string{usersDDL, ordersFK} {
		if !strings.Contains(out, want) {
			t.Fatalf("output missing %q:\n%s", want, out)
		}
	}
}

func TestJSEngineErrors(t *testing.T) {
	e := &JSEngine{Timeout: 50 * time.Millisecond}
	if _, err := e.Transform("<sql/>", []byte("var x = 1;")); err == nil || !strings.Contains(err.Error(), "transform()") {
		t.Fatalf("missing transform: err = %v", err)
	}
	if _, err := e.Transform("<sql/>", []byte("function transform() { throw new Error('nope'); }")); err == nil || !strings.Contains(err.Error(), "nope") {
		t.Fatalf("throwing artifact: err = %v", err)
	}
	if _, err := e.Transform("<sql/>", []byte("function transform() { for (;;) {} }")); err == nil || !strings.Contains(err.Error(), "interrupted") {
		t.Fatalf("runaway artifact: err = %v", err)
	}
}

func TestNewEngine(t *testing.T) {
	for name, want := range map[string]string{"template": "template", "JS": "js"} {
		e, err := NewEngine(name)
		if err != nil || e == nil || e.Name() != want {
			t.Fatalf("NewEngine(%q) = %v,%v", name, e, err)
		}
	}
	if e, err := NewEngine("none"); e != nil || err != nil {
		t.Fatalf("NewEngine(none) = %v,%v", e, err)
	}
	if _, err := NewEngine("xslt"); err == nil {
		t.Fatalf("expected error for unknown engine")
	}
}

func TestRawDocumentRealignLayout(t *testing.T) {
	var b strings.Builder
	b.WriteString("<sql>")
	for i := 0; i < 5; i++ {
		b.WriteString(`<table name="t" x="999" y="999"/>`)
	}
	b.WriteString("</sql>")
	d := NewRawDocument(b.String())
	d.RealignLayout()
	tree, err := Parse(d.ToXML())
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	s := ReadSchema(tree.Root())
	if s.Tables[0].X != 20 || s.Tables[0].Y != 20 {
		t.Fatalf("first table at %d,%d", s.Tables[0].X, s.Tables[0].Y)
	}
	if s.Tables[4].X != 20 || s.Tables[4].Y != 240 {
		t.Fatalf("fifth table at %d,%d", s.Tables[4].X, s.Tables[4].Y)
	}
}

func TestSchemaDocumentRoundTrip(t *testing.T) {
	s := Schema{Tables: []Table{{
		Name: "a", X: 1, Y: 2,
		Rows: []Row{{Name: "id", Type: "INTEGER", AutoIncrement: true, Default: "NULL"},
			{Name: "b_id", Type: "INTEGER", Nullable: true, Default: "0", HasDefault: true, Relations: []Relation{{Table: "b", Row: "id"}}}},
		Keys: []Key{{Type: "PRIMARY", Parts: []string{"id"}}},
	}}}
	got := ReadSchema(s.Document().Root())
	if !reflect.DeepEqual(got, s) {
		t.Fatalf("ReadSchema(Document()) =\n%#v\nwant\n%#v", got, s)
	}
	if k, ok := got.Tables[0].Primary(); !ok || k.Parts[0] != "id" {
		t.Fatalf("Primary() = %v,%v", k, ok)
	}
}
