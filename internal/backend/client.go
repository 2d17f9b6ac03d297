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
	"crypto/tls"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/beevik/etree"

	"sqldesigner/internal/domain"
	applog "sqldesigner/internal/log"
)

// Client speaks the designer's backend protocol: every call is a request to
// <XHRPath>backend?action=... answered with a status code and a text or XML body.
type Client struct {
	XHRPath    string
	StaticPath string
	Token      string // bearer token
	client     *http.Client
}

// ClientOptions tune the underlying http.Client. A zero Timeout means requests
// may hang indefinitely.
type ClientOptions struct {
	Timeout     time.Duration
	TLSInsecure bool
}

// NewClient creates a new backend client. Both paths are bases; a missing trailing slash is added.
func NewClient(xhrPath, staticPath, token string, opts ClientOptions) *Client {
	hc := &http.Client{Timeout: opts.Timeout}
	if opts.TLSInsecure {
		tr := http.DefaultTransport.(*http.Transport).Clone()
		tr.TLSClientConfig = &tls.Config{InsecureSkipVerify: true} //nolint:gosec // opt-in for self-signed dev servers
		hc.Transport = tr
	}
	return &Client{
		XHRPath:    withSlash(xhrPath),
		StaticPath: withSlash(staticPath),
		Token:      token,
		client:     hc,
	}
}

func withSlash(s string) string {
	if s == "" || strings.HasSuffix(s, "/") {
		return s
	}
	return s + "/"
}

// Response is the outcome of one backend request. Code is 0 when no HTTP
// response arrived at all; Err then carries the transport failure.
type Response struct {
	Action domain.Action
	Code   int
	Body   string
	// Tree is the body parsed as XML, nil when it is not a well-formed document.
	Tree *etree.Document
	Err  error
}

func (c *Client) do(ctx context.Context, action domain.Action, method string, q url.Values, body string) Response {
	l := applog.WithOperation(applog.WithComponent("backend"), string(action))
	res := Response{Action: action}
	u := c.XHRPath + "backend?" + q.Encode()
	var rd io.Reader
	if method == http.MethodPost {
		rd = strings.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, u, rd)
	if err != nil {
		res.Err = err
		return res
	}
	if method == http.MethodPost {
		req.Header.Set("Content-type", "application/xml")
	}
	if c.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.Token)
	}
	start := time.Now()
	resp, err := c.client.Do(req)
	if err != nil {
		l.WarnContext(ctx, "request failed", slog.String("url", u), slog.Any("err", err))
		res.Err = err
		return res
	}
	defer resp.Body.Close()
	b, err := io.ReadAll(resp.Body)
	res.Code = resp.StatusCode
	res.Body = string(b)
	if err != nil {
		res.Err = err
	}
	if ct := resp.Header.Get("Content-Type"); strings.Contains(ct, "xml") || strings.HasPrefix(strings.TrimSpace(res.Body), "<") {
		tree := etree.NewDocument()
		if perr := tree.ReadFromBytes(b); perr == nil && tree.Root() != nil {
			res.Tree = tree
		}
	}
	l.DebugContext(ctx, "request done", slog.Int("status", res.Code), slog.Int("bytes", len(b)), slog.Duration("took", time.Since(start)))
	return res
}

// Save stores xml under keyword.
func (c *Client) Save(ctx context.Context, keyword, xml string) Response {
	q := url.Values{"action": {"save"}, "keyword": {keyword}}
	return c.do(ctx, domain.ActionSave, http.MethodPost, q, xml)
}

// Load fetches the diagram stored under keyword.
func (c *Client) Load(ctx context.Context, keyword string) Response {
	q := url.Values{"action": {"load"}, "keyword": {keyword}}
	return c.do(ctx, domain.ActionLoad, http.MethodGet, q, "")
}

// List fetches the newline-separated diagram names.
func (c *Client) List(ctx context.Context) Response {
	return c.do(ctx, domain.ActionList, http.MethodGet, url.Values{"action": {"list"}}, "")
}

// Import asks the backend to build a diagram from a live database.
func (c *Client) Import(ctx context.Context, database string) Response {
	q := url.Values{"action": {"import"}, "database": {database}}
	return c.do(ctx, domain.ActionImport, http.MethodGet, q, "")
}

// FetchArtifact downloads a static file relative to StaticPath.
func (c *Client) FetchArtifact(ctx context.Context, rel string) ([]byte, error) {
	u := c.StaticPath + strings.TrimPrefix(rel, "/")
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("GET %s: %s", u, resp.Status)
	}
	return io.ReadAll(resp.Body)
}
