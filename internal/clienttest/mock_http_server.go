// Copyright 2025 Bastion Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package clienttest provides HTTP stubbing helpers for client tests.
package clienttest

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
)

// MockHTTPServer is a test HTTP server that serves canned responses for
// registered paths and 404s for everything else.
type MockHTTPServer struct {
	// URL of the running server, without a trailing slash.
	URL string

	mu        sync.Mutex
	responses map[string]mockResponse
}

type mockResponse struct {
	status int
	body   []byte
}

// NewMockHTTPServer starts a MockHTTPServer that shuts down when the test
// finishes.
func NewMockHTTPServer(t *testing.T) *MockHTTPServer {
	t.Helper()
	m := &MockHTTPServer{responses: make(map[string]mockResponse)}
	srv := httptest.NewServer(http.HandlerFunc(m.handle))
	t.Cleanup(srv.Close)
	m.URL = srv.URL
	return m
}

// SetResponse registers a 200 response body for a path. The path may carry
// a query string, in which case only requests with that exact query match.
func (m *MockHTTPServer) SetResponse(t *testing.T, path string, response []byte) {
	t.Helper()
	m.set(path, mockResponse{status: http.StatusOK, body: response})
}

// SetStatus registers a bodyless response with the given status for a path.
func (m *MockHTTPServer) SetStatus(t *testing.T, path string, status int) {
	t.Helper()
	m.set(path, mockResponse{status: status})
}

func (m *MockHTTPServer) set(path string, resp mockResponse) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.responses["/"+strings.TrimPrefix(path, "/")] = resp
}

func (m *MockHTTPServer) handle(w http.ResponseWriter, r *http.Request) {
	m.mu.Lock()
	resp, ok := m.responses[r.URL.Path]
	if !ok && r.URL.RawQuery != "" {
		resp, ok = m.responses[r.URL.Path+"?"+r.URL.RawQuery]
	}
	m.mu.Unlock()

	if !ok {
		http.NotFound(w, r)
		return
	}
	w.WriteHeader(resp.status)
	_, _ = w.Write(resp.body)
}
