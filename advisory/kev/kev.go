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

// Package kev fetches the CISA Known Exploited Vulnerabilities catalog.
package kev

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"bitbucket.org/creachadair/stringset"
)

// DefaultFeedURL is the public KEV catalog feed.
const DefaultFeedURL = "https://www.cisa.gov/sites/default/files/feeds/known_exploited_vulnerabilities.json"

const (
	defaultUserAgent = "bastion/1.0.0 (+https://github.com/nfroze/bastion)"
	defaultTimeout   = 10 * time.Second
)

// Client fetches the KEV catalog. The zero value uses the public feed with
// a default HTTP client.
type Client struct {
	FeedURL    string
	HTTPClient *http.Client
	UserAgent  string
}

// ExploitedCVEs returns the set of CVE identifiers the catalog lists as
// actively exploited. On failure it returns an empty set alongside the
// error, so a missing feed downgrades detection instead of breaking it.
func (c *Client) ExploitedCVEs(ctx context.Context) (stringset.Set, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	url := c.FeedURL
	if url == "" {
		url = DefaultFeedURL
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return stringset.New(), err
	}
	ua := c.UserAgent
	if ua == "" {
		ua = defaultUserAgent
	}
	req.Header.Set("User-Agent", ua)

	httpClient := c.HTTPClient
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	resp, err := httpClient.Do(req)
	if err != nil {
		return stringset.New(), fmt.Errorf("KEV feed query failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return stringset.New(), fmt.Errorf("KEV feed query status: %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return stringset.New(), err
	}

	var catalog struct {
		Vulnerabilities []struct {
			CveID string `json:"cveID"`
		} `json:"vulnerabilities"`
	}
	if err := json.Unmarshal(body, &catalog); err != nil {
		return stringset.New(), fmt.Errorf("decoding KEV catalog: %w", err)
	}

	cves := stringset.New()
	for _, v := range catalog.Vulnerabilities {
		if v.CveID != "" {
			cves.Add(v.CveID)
		}
	}
	return cves, nil
}
