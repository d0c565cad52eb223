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

// Package osv queries the OSV.dev API for vulnerabilities affecting
// resolved packages.
//
// Queries go through the batch endpoint in windows of up to 1,000; the
// batch response carries bare vulnerability IDs, which are then hydrated
// into full records through concurrent per-ID lookups.
package osv

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/multierr"
	"golang.org/x/sync/errgroup"

	"github.com/nfroze/bastion/ecosystem"
)

// DefaultBaseURL is the public OSV.dev API.
const DefaultBaseURL = "https://api.osv.dev"

const (
	// maxBatchSize is the query cap the batch endpoint accepts per call.
	maxBatchSize = 1000
	// maxConcurrentRequests bounds the per-ID hydration fan-out.
	maxConcurrentRequests = 1000

	defaultUserAgent = "bastion/1.0.0 (+https://github.com/nfroze/bastion)"
	defaultTimeout   = 10 * time.Second
)

// Query identifies one package to look up in the advisory database.
type Query struct {
	Package Package `json:"package"`
	Version string  `json:"version,omitempty"`
}

// Package is the package part of a Query.
type Package struct {
	Name      string `json:"name"`
	Ecosystem string `json:"ecosystem"`
}

// Vulnerability is the subset of an OSV record the analyser consumes.
type Vulnerability struct {
	ID               string         `json:"id"`
	Summary          string         `json:"summary"`
	Aliases          []string       `json:"aliases"`
	Severity         []Severity     `json:"severity"`
	Affected         []Affected     `json:"affected"`
	DatabaseSpecific map[string]any `json:"database_specific"`
}

// Severity is one scoring entry on a vulnerability record.
type Severity struct {
	Type  string `json:"type"`
	Score string `json:"score"`
}

// Affected describes one affected package of a vulnerability record.
type Affected struct {
	Ranges []Range `json:"ranges"`
}

// Range is an affected version range.
type Range struct {
	Type   string  `json:"type"`
	Events []Event `json:"events"`
}

// Event is an introduced/fixed boundary inside a Range.
type Event struct {
	Introduced string `json:"introduced"`
	Fixed      string `json:"fixed"`
}

// QueryFor builds the batch query for one package. The version is omitted
// when unknown so the database matches the package at any version.
func QueryFor(eco ecosystem.Ecosystem, name, version string) *Query {
	q := &Query{Package: Package{Name: name, Ecosystem: eco.OSVLabel()}}
	if version != "" && version != "latest" {
		q.Version = version
	}
	return q
}

// Client calls the OSV.dev API. The zero value uses the public API with a
// default HTTP client.
type Client struct {
	BaseURL    string
	HTTPClient *http.Client
	UserAgent  string
}

// Match returns, for each query, the vulnerability records affecting it.
// The i-th result set corresponds to the i-th query. Upstream failures
// degrade the result — a failed batch window leaves its queries without
// matches, a failed hydration drops that record — and are reported through
// the combined error for the caller to log.
func (c *Client) Match(ctx context.Context, queries []*Query) ([][]*Vulnerability, error) {
	idsPerQuery := make([][]string, len(queries))
	var errs error

	for start := 0; start < len(queries); start += maxBatchSize {
		end := min(start+maxBatchSize, len(queries))
		results, err := c.queryBatch(ctx, queries[start:end])
		if err != nil {
			errs = multierr.Append(errs, fmt.Errorf("osv batch query %d-%d: %w", start, end, err))
			continue
		}
		for i, r := range results {
			for _, v := range r.Vulns {
				idsPerQuery[start+i] = append(idsPerQuery[start+i], v.ID)
			}
		}
	}

	ids := make([]string, 0)
	seen := make(map[string]bool)
	for _, qids := range idsPerQuery {
		for _, id := range qids {
			if !seen[id] {
				seen[id] = true
				ids = append(ids, id)
			}
		}
	}

	records, err := c.vulnerabilities(ctx, ids)
	errs = multierr.Append(errs, err)

	matches := make([][]*Vulnerability, len(queries))
	for i, qids := range idsPerQuery {
		for _, id := range qids {
			if v := records[id]; v != nil {
				matches[i] = append(matches[i], v)
			}
		}
	}
	return matches, errs
}

// Get fetches the full record of a single vulnerability by ID.
func (c *Client) Get(ctx context.Context, id string) (*Vulnerability, error) {
	body, err := c.do(ctx, http.MethodGet, c.baseURL()+"/v1/vulns/"+id, nil)
	if err != nil {
		return nil, err
	}
	var v Vulnerability
	if err := json.Unmarshal(body, &v); err != nil {
		return nil, fmt.Errorf("decoding vulnerability %s: %w", id, err)
	}
	return &v, nil
}

type batchResult struct {
	Vulns []struct {
		ID string `json:"id"`
	} `json:"vulns"`
}

func (c *Client) queryBatch(ctx context.Context, queries []*Query) ([]batchResult, error) {
	payload, err := json.Marshal(struct {
		Queries []*Query `json:"queries"`
	}{Queries: queries})
	if err != nil {
		return nil, err
	}

	body, err := c.do(ctx, http.MethodPost, c.baseURL()+"/v1/querybatch", payload)
	if err != nil {
		return nil, err
	}

	var resp struct {
		Results []batchResult `json:"results"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("decoding batch response: %w", err)
	}
	if len(resp.Results) != len(queries) {
		return nil, fmt.Errorf("batch response has %d results for %d queries", len(resp.Results), len(queries))
	}
	return resp.Results, nil
}

// vulnerabilities hydrates IDs into full records concurrently. Failed
// lookups are dropped from the map and combined into the returned error.
func (c *Client) vulnerabilities(ctx context.Context, ids []string) (map[string]*Vulnerability, error) {
	records := make([]*Vulnerability, len(ids))
	lookupErrs := make([]error, len(ids))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(maxConcurrentRequests)
	for i, id := range ids {
		i, id := i, id
		g.Go(func() error {
			if ctx.Err() != nil {
				return nil
			}
			v, err := c.Get(ctx, id)
			if err != nil {
				lookupErrs[i] = err
				return nil
			}
			records[i] = v
			return nil
		})
	}
	_ = g.Wait()

	byID := make(map[string]*Vulnerability, len(ids))
	for i, id := range ids {
		if records[i] != nil {
			byID[id] = records[i]
		}
	}
	return byID, multierr.Combine(lookupErrs...)
}

func (c *Client) do(ctx context.Context, method, url string, payload []byte) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	var reqBody io.Reader
	if payload != nil {
		reqBody = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, url, reqBody)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", c.userAgent())
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient().Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("OSV query status: %d", resp.StatusCode)
	}
	return io.ReadAll(resp.Body)
}

func (c *Client) baseURL() string {
	if c.BaseURL != "" {
		return c.BaseURL
	}
	return DefaultBaseURL
}

func (c *Client) httpClient() *http.Client {
	if c.HTTPClient != nil {
		return c.HTTPClient
	}
	return http.DefaultClient
}

func (c *Client) userAgent() string {
	if c.UserAgent != "" {
		return c.UserAgent
	}
	return defaultUserAgent
}
