/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package backend

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"sqldesigner/internal/domain"
)

func TestClientRequestShape(t *testing.T) {
	var (
		gotMethod, gotQuery, gotCT, gotAuth, gotBody string
	)
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotMethod = r.Method
		gotQuery = r.URL.RawQuery
		gotCT = r.Header.Get("Content-type")
		gotAuth = r.Header.Get("Authorization")
		b, _ := io.ReadAll(r.Body)
		gotBody = string(b)
		if r.URL.Path != "/app/backend" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer ts.Close()

	c := NewClient(ts.URL+"/app", ts.URL, "tok", ClientOptions{})
	res := c.Save(context.Background(), "a b&c", "<sql/>")
	if res.Code != http.StatusOK || res.Action != domain.ActionSave {
		t.Fatalf("save = %+v", res)
	}
	if gotMethod != http.MethodPost || gotCT != "application/xml" || gotBody != "<sql/>" {
		t.Fatalf("request = %s %q %q", gotMethod, gotCT, gotBody)
	}
	if gotQuery != "action=save&keyword=a+b%26c" {
		t.Fatalf("query = %q", gotQuery)
	}
	if gotAuth != "Bearer tok" {
		t.Fatalf("auth = %q", gotAuth)
	}

	c.Import(context.Background(), "x/y")
	if gotMethod != http.MethodGet || gotQuery != "action=import&database=x%2Fy" {
		t.Fatalf("import request = %s %q", gotMethod, gotQuery)
	}
}

func TestClientTransportFailureHasNoCode(t *testing.T) {
	ts := httptest.NewServer(http.NotFoundHandler())
	url := ts.URL
	ts.Close()

	res := NewClient(url, url, "", ClientOptions{}).List(context.Background())
	if res.Code != 0 || res.Err == nil {
		t.Fatalf("closed server: code=%d err=%v", res.Code, res.Err)
	}
}

func TestClientTimeout(t *testing.T) {
	release := make(chan struct{})
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-release
	}))
	defer ts.Close()
	defer close(release)

	res := NewClient(ts.URL, ts.URL, "", ClientOptions{Timeout: 50 * time.Millisecond}).List(context.Background())
	if res.Code != 0 || res.Err == nil {
		t.Fatalf("expected timeout, got %+v", res)
	}
}

func TestClientNonXMLBodyHasNoTree(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/xml")
		_, _ = w.Write([]byte("<broken"))
	}))
	defer ts.Close()
	res := NewClient(ts.URL, ts.URL, "", ClientOptions{}).Load(context.Background(), "x")
	if res.Code != http.StatusOK || res.Tree != nil {
		t.Fatalf("load = %d tree=%v", res.Code, res.Tree)
	}
}
