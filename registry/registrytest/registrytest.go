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

// Package registrytest provides an in-memory registry client for resolver
// and analyser tests.
package registrytest

import (
	"context"
	"sync"
	"time"

	"github.com/nfroze/bastion/analysis"
	"github.com/nfroze/bastion/manifest"
	"github.com/nfroze/bastion/registry"
)

// Response is the canned result for one package key.
type Response struct {
	Dependencies []manifest.Dependency
	Metadata     registry.Metadata
	Err          error
}

// Client implements registry.Client against a fixed universe of canned
// responses. Unregistered packages resolve to an empty package rather than
// an error, so minimal tests need no setup. All methods are safe for
// concurrent use.
type Client struct {
	mu        sync.Mutex
	responses map[string]Response
	delay     time.Duration
	calls     []string
}

// New returns an empty fake registry.
func New() *Client {
	return &Client{responses: make(map[string]Response)}
}

// Set registers the response served for a (name, version) pair.
func (c *Client) Set(name, version string, r Response) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.responses[analysis.Key(name, version)] = r
}

// SetDelay makes every Fetch block for d before answering.
func (c *Client) SetDelay(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.delay = d
}

// Calls returns the package keys fetched so far, in call order.
func (c *Client) Calls() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, len(c.calls))
	copy(out, c.calls)
	return out
}

// Fetch implements registry.Client.
func (c *Client) Fetch(ctx context.Context, name, version string) (*registry.Package, error) {
	key := analysis.Key(name, version)

	c.mu.Lock()
	c.calls = append(c.calls, key)
	r, ok := c.responses[key]
	delay := c.delay
	c.mu.Unlock()

	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	if !ok {
		return &registry.Package{Name: name, Version: version}, nil
	}
	if r.Err != nil {
		return nil, r.Err
	}
	return &registry.Package{
		Name:         name,
		Version:      version,
		Dependencies: r.Dependencies,
		Metadata:     r.Metadata,
	}, nil
}
