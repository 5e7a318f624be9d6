/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package server

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"gocomicstudio/internal/notify"
	"gocomicstudio/internal/session"
)

// Client is a minimal HTTP client for the session API, used by the CLI
// and tests.
type Client struct {
	BaseURL string
	client  *http.Client
}

// NewClient creates a new client. baseURL may include a trailing slash; it will be normalized.
func NewClient(baseURL string) *Client {
	return &Client{
		BaseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: 5 * time.Minute},
	}
}

// APIError is a non-2xx response.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string { return fmt.Sprintf("server: %d %s", e.Status, e.Message) }

func (c *Client) do(ctx context.Context, method, path string, body, dest any) error {
	u, err := url.Parse(c.BaseURL + path)
	if err != nil {
		return err
	}
	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return err
		}
		rd = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, u.String(), rd)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var e struct {
			Error string `json:"error"`
		}
		_ = json.NewDecoder(resp.Body).Decode(&e)
		return &APIError{Status: resp.StatusCode, Message: e.Error}
	}
	if dest == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if w, ok := dest.(io.Writer); ok {
		_, err = io.Copy(w, resp.Body)
		return err
	}
	return json.NewDecoder(resp.Body).Decode(dest)
}

// View fetches the current session view.
func (c *Client) View(ctx context.Context) (session.View, error) {
	var v session.View
	err := c.do(ctx, http.MethodGet, "/api/session", nil, &v)
	return v, err
}

// GenerateScript asks the server to generate the script and returns the
// resulting view.
func (c *Client) GenerateScript(ctx context.Context) (session.View, error) {
	var v session.View
	err := c.do(ctx, http.MethodPost, "/api/script", nil, &v)
	return v, err
}

// Compose starts artwork generation for every panel.
func (c *Client) Compose(ctx context.Context) (session.View, error) {
	var v session.View
	err := c.do(ctx, http.MethodPost, "/api/compose", nil, &v)
	return v, err
}

func (c *Client) Save(ctx context.Context) error {
	return c.do(ctx, http.MethodPost, "/api/save", nil, nil)
}

func (c *Client) Load(ctx context.Context) (session.View, error) {
	var v session.View
	err := c.do(ctx, http.MethodPost, "/api/load", nil, &v)
	return v, err
}

func (c *Client) Reset(ctx context.Context) error {
	return c.do(ctx, http.MethodPost, "/api/reset", nil, nil)
}

// SetCredential stores the API key on the server side keychain.
func (c *Client) SetCredential(ctx context.Context, key string) error {
	return c.do(ctx, http.MethodPut, "/api/credential", map[string]string{"key": key}, nil)
}

// CredentialConfigured reports whether the server has an API key.
func (c *Client) CredentialConfigured(ctx context.Context) (bool, error) {
	var st struct {
		Configured bool `json:"configured"`
	}
	err := c.do(ctx, http.MethodGet, "/api/credential", nil, &st)
	return st.Configured, err
}

// ExportPDF streams the PDF export into w.
func (c *Client) ExportPDF(ctx context.Context, w io.Writer, pageSize string) error {
	path := "/api/export.pdf"
	if pageSize != "" {
		path += "?pageSize=" + url.QueryEscape(pageSize)
	}
	return c.do(ctx, http.MethodGet, path, nil, w)
}

// Events subscribes to the SSE stream and calls fn for every event until
// ctx is done or the stream ends.
func (c *Client) Events(ctx context.Context, fn func(notify.Event)) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.BaseURL+"/api/events", nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "text/event-stream")
	stream := &http.Client{}
	resp, err := stream.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return &APIError{Status: resp.StatusCode, Message: resp.Status}
	}
	sc := bufio.NewScanner(resp.Body)
	for sc.Scan() {
		line := sc.Text()
		data, ok := strings.CutPrefix(line, "data: ")
		if !ok {
			continue
		}
		var e notify.Event
		if err := json.Unmarshal([]byte(data), &e); err != nil {
			return fmt.Errorf("decode event: %w", err)
		}
		fn(e)
	}
	if err := sc.Err(); err != nil && ctx.Err() == nil {
		return err
	}
	return nil
}
