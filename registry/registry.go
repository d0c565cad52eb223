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

// Package registry fetches the immediate dependencies and publication
// metadata of a package from its ecosystem's public registry.
//
// One adapter exists per ecosystem. An adapter returns an error only when
// its primary fetch fails; auxiliary lookups (publication times, download
// counts, dependency listings) degrade to partial metadata on failure so a
// flaky upstream never aborts an analysis.
package registry

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/tidwall/gjson"

	"github.com/nfroze/bastion/ecosystem"
	"github.com/nfroze/bastion/manifest"
)

// Default base URLs of the public registries.
const (
	defaultNPMRegistryURL  = "https://registry.npmjs.org"
	defaultNPMDownloadsURL = "https://api.npmjs.org"
	defaultPyPIURL         = "https://pypi.org"
	defaultGoProxyURL      = "https://proxy.golang.org"
	defaultCratesURL       = "https://crates.io/api/v1"
	defaultMavenSearchURL  = "https://search.maven.org"
)

// defaultUserAgent identifies the analyser to upstream registries.
const defaultUserAgent = "bastion/1.0.0 (+https://github.com/nfroze/bastion)"

// defaultTimeout bounds each individual registry call.
const defaultTimeout = 10 * time.Second

var (
	errAPIFailed = errors.New("registry query failed")
	errNotFound  = errors.New("package not found")
)

// Metadata holds the optional publication signals a registry exposes for a
// package. Zero values mean the registry did not supply the signal.
type Metadata struct {
	Licence         string
	FirstPublished  string
	LastPublished   string
	WeeklyDownloads int
}

// Package is the result of fetching one package from a registry: its
// immediate dependencies in the order the registry returned them, plus
// whatever metadata the registry exposes. Version carries the concrete
// version the adapter ended up fetching, which may differ from the
// requested one when the request left it empty.
type Package struct {
	Name         string
	Version      string
	Dependencies []manifest.Dependency
	Metadata     Metadata
}

// Client fetches a single package from a registry.
type Client interface {
	Fetch(ctx context.Context, name, version string) (*Package, error)
}

// Config carries the shared HTTP plumbing and the per-registry base URLs.
// Zero-value fields fall back to the public registry defaults.
type Config struct {
	// HTTPClient is shared across all adapters. Defaults to a client with
	// pooled connections and no overall timeout; each call applies its own.
	HTTPClient *http.Client
	// UserAgent is sent on every registry request.
	UserAgent string

	NPMRegistryURL  string
	NPMDownloadsURL string
	PyPIURL         string
	GoProxyURL      string
	CratesURL       string
	MavenSearchURL  string
}

func (c Config) withDefaults() Config {
	if c.HTTPClient == nil {
		c.HTTPClient = &http.Client{}
	}
	if c.UserAgent == "" {
		c.UserAgent = defaultUserAgent
	}
	if c.NPMRegistryURL == "" {
		c.NPMRegistryURL = defaultNPMRegistryURL
	}
	if c.NPMDownloadsURL == "" {
		c.NPMDownloadsURL = defaultNPMDownloadsURL
	}
	if c.PyPIURL == "" {
		c.PyPIURL = defaultPyPIURL
	}
	if c.GoProxyURL == "" {
		c.GoProxyURL = defaultGoProxyURL
	}
	if c.CratesURL == "" {
		c.CratesURL = defaultCratesURL
	}
	if c.MavenSearchURL == "" {
		c.MavenSearchURL = defaultMavenSearchURL
	}
	return c
}

// New returns the registry adapter for the given ecosystem.
func New(eco ecosystem.Ecosystem, cfg Config) (Client, error) {
	cfg = cfg.withDefaults()
	g := getter{client: cfg.HTTPClient, userAgent: cfg.UserAgent}
	switch eco {
	case ecosystem.NPM:
		return &npmClient{getter: g, registry: cfg.NPMRegistryURL, downloads: cfg.NPMDownloadsURL}, nil
	case ecosystem.PyPI:
		return &pypiClient{getter: g, base: cfg.PyPIURL}, nil
	case ecosystem.Go:
		return &goProxyClient{getter: g, base: cfg.GoProxyURL}, nil
	case ecosystem.Cargo:
		return &cratesClient{getter: g, base: cfg.CratesURL}, nil
	case ecosystem.Maven:
		return &mavenClient{getter: g, base: cfg.MavenSearchURL}, nil
	default:
		return nil, fmt.Errorf("no registry adapter for ecosystem %q", eco)
	}
}

// getter is the HTTP plumbing shared by all adapters: one pooled client,
// one user-agent, one timeout per call.
type getter struct {
	client    *http.Client
	userAgent string
}

func (g getter) get(ctx context.Context, url string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", g.userAgent)

	resp, err := g.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", errAPIFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, fmt.Errorf("%w: %s", errNotFound, url)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: status %d for %s", errAPIFailed, resp.StatusCode, url)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read body: %w", err)
	}
	return body, nil
}

func (g getter) json(ctx context.Context, url string) (gjson.Result, error) {
	body, err := g.get(ctx, url)
	if err != nil {
		return gjson.Result{}, err
	}
	return gjson.ParseBytes(body), nil
}

// licenceString extracts a licence identifier from a registry field that is
// sometimes a plain string and sometimes an object with a "type" key.
func licenceString(v gjson.Result) string {
	if v.Type == gjson.String {
		return v.String()
	}
	return v.Get("type").String()
}
