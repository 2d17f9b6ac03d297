/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package persist

import (
	"context"
	"io/fs"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/beevik/etree"

	"sqldesigner/internal/backend"
	"sqldesigner/internal/domain"
	"sqldesigner/internal/storage"
	"sqldesigner/internal/xmldoc"
)

type fakeWindow struct {
	mu     sync.Mutex
	titles []string
	shown  int
	hidden int
	closed int
}

func (w *fakeWindow) SetTitle(t string) { w.mu.Lock(); w.titles = append(w.titles, t); w.mu.Unlock() }
func (w *fakeWindow) ShowBusy()         { w.mu.Lock(); w.shown++; w.mu.Unlock() }
func (w *fakeWindow) HideBusy()         { w.mu.Lock(); w.hidden++; w.mu.Unlock() }
func (w *fakeWindow) CloseDialog()      { w.mu.Lock(); w.closed++; w.mu.Unlock() }

func (w *fakeWindow) busy() (shown, hidden int) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.shown, w.hidden
}

func (w *fakeWindow) titleList() []string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([]string(nil), w.titles...)
}

type recorder struct {
	mu   sync.Mutex
	msgs []string
}

func (r *recorder) Show(s string)  { r.mu.Lock(); r.msgs = append(r.msgs, s); r.mu.Unlock() }
func (r *recorder) Alert(s string) { r.Show(s) }

func (r *recorder) all() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.msgs...)
}

func (r *recorder) last() string {
	all := r.all()
	if len(all) == 0 {
		return ""
	}
	return all[len(all)-1]
}

type promptCall struct{ title, def string }

type fakePrompter struct {
	mu     sync.Mutex
	answer string
	ok     bool
	calls  []promptCall
}

func (p *fakePrompter) Prompt(title, def string) (string, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls = append(p.calls, promptCall{title, def})
	return p.answer, p.ok
}

func (p *fakePrompter) set(answer string, ok bool) {
	p.mu.Lock()
	p.answer, p.ok = answer, ok
	p.mu.Unlock()
}

func (p *fakePrompter) callList() []promptCall {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]promptCall(nil), p.calls...)
}

type remoteCall struct {
	action  domain.Action
	keyword string
	body    string
}

type fakeRemote struct {
	mu       sync.Mutex
	calls    []remoteCall
	resp     map[domain.Action]backend.Response
	block    chan struct{}
	artifact []byte
	artErr   error
	fetched  []string
}

func (f *fakeRemote) do(action domain.Action, keyword, body string) backend.Response {
	f.mu.Lock()
	f.calls = append(f.calls, remoteCall{action, keyword, body})
	res, ok := f.resp[action]
	block := f.block
	f.mu.Unlock()
	if block != nil {
		<-block
	}
	if !ok {
		res = backend.Response{Code: 200}
	}
	res.Action = action
	return res
}

func (f *fakeRemote) Save(_ context.Context, kw, xml string) backend.Response {
	return f.do(domain.ActionSave, kw, xml)
}
func (f *fakeRemote) Load(_ context.Context, kw string) backend.Response {
	return f.do(domain.ActionLoad, kw, "")
}
func (f *fakeRemote) List(context.Context) backend.Response { return f.do(domain.ActionList, "", "") }
func (f *fakeRemote) Import(_ context.Context, db string) backend.Response {
	return f.do(domain.ActionImport, db, "")
}
func (f *fakeRemote) FetchArtifact(_ context.Context, rel string) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fetched = append(f.fetched, rel)
	return f.artifact, f.artErr
}

func (f *fakeRemote) callList() []remoteCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]remoteCall(nil), f.calls...)
}

// countingDoc counts layout realignments.
type countingDoc struct {
	*xmldoc.RawDocument
	realigned atomic.Int32
}

func (d *countingDoc) RealignLayout() {
	d.realigned.Add(1)
	d.RawDocument.RealignLayout()
}

// corruptingKV reads back something other than what was written.
type corruptingKV struct{ *storage.MemoryKV }

func (k corruptingKV) Get(key string) (string, bool, error) {
	v, ok, err := k.MemoryKV.Get(key)
	return v + "<!-- truncated -->", ok, err
}

// countingKV counts writes.
type countingKV struct {
	*storage.MemoryKV
	sets atomic.Int32
}

func (k *countingKV) Set(key, value string) error {
	k.sets.Add(1)
	return k.MemoryKV.Set(key, value)
}

type harness struct {
	c      *Controller
	doc    *countingDoc
	win    *fakeWindow
	out    *recorder
	note   *recorder
	prompt *fakePrompter
	remote *fakeRemote
	kv     *countingKV
	prefs  *storage.MemoryKV
}

const sampleXML = `<?xml version="1.0" encoding="utf-8"?>
<sql>
  <table x="5" y="5" name="users">
    <row name="id" null="0" autoincrement="1">
      <datatype>INTEGER</datatype>
      <default>NULL</default>
    </row>
    <key type="PRIMARY" name="">
      <part>id</part>
    </key>
  </table>
</sql>`

func newHarness(t *testing.T, mutate func(*Deps)) *harness {
	t.Helper()
	h := &harness{
		doc:    &countingDoc{RawDocument: xmldoc.NewRawDocument(sampleXML)},
		win:    &fakeWindow{},
		out:    &recorder{},
		note:   &recorder{},
		prompt: &fakePrompter{},
		remote: &fakeRemote{resp: map[domain.Action]backend.Response{}},
		kv:     &countingKV{MemoryKV: storage.NewMemoryKV(0)},
		prefs:  storage.NewMemoryKV(0),
	}
	d := Deps{
		Document: h.doc,
		Window:   h.win,
		Output:   h.out,
		Notifier: h.note,
		Prompter: h.prompt,
		Prefs:    h.prefs,
		KV:       h.kv,
		Remote:   h.remote,
		Engine:   xmldoc.TemplateEngine{},
		DB:       "postgresql",
	}
	if mutate != nil {
		mutate(&d)
	}
	h.c = New(d)
	t.Cleanup(h.c.Close)
	return h
}

func wait(t *testing.T, op *Op) Outcome {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	out, err := op.Wait(ctx)
	if err != nil {
		t.Fatalf("operation did not complete: %v", err)
	}
	return out
}

func xmlTree(t *testing.T, s string) *etree.Document {
	t.Helper()
	tree, err := xmldoc.Parse(s)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	return tree
}

func fsRead(name string) ([]byte, error) { return fs.ReadFile(xmldoc.Artifacts(), name) }
