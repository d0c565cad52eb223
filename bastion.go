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

// Package bastion provides an interface for analysing the declared
// dependencies of a software project: transitive resolution against the
// package registries, advisory matching, risk scoring and hazardous-path
// detection, sequenced under a single wall-clock budget with cached results.
package bastion

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/multierr"

	"github.com/nfroze/bastion/advisory/kev"
	"github.com/nfroze/bastion/advisory/osv"
	"github.com/nfroze/bastion/analysis"
	"github.com/nfroze/bastion/cache"
	"github.com/nfroze/bastion/ecosystem"
	"github.com/nfroze/bastion/graph"
	"github.com/nfroze/bastion/log"
	"github.com/nfroze/bastion/manifest"
	"github.com/nfroze/bastion/paths"
	"github.com/nfroze/bastion/registry"
	"github.com/nfroze/bastion/risk"
)

// DefaultTimeout is the wall-clock budget for one analysis. New work is not
// started past the budget but in-flight calls are never force-cancelled.
const DefaultTimeout = 50 * time.Second

// cacheTTL is how long a finished analysis is served from the cache.
const cacheTTL = 24 * time.Hour

// ErrInvalidInput marks request validation failures: a missing manifest, an
// unsupported ecosystem, or a manifest declaring no dependencies. Handlers
// surface these as client errors; everything else is internal.
var ErrInvalidInput = errors.New("invalid input")

// ResultCache persists finished analyses across requests. Implementations
// treat expired entries as absent. Failures never fail the analysis.
type ResultCache interface {
	Get(key string) (result []byte, ok bool, err error)
	Put(key string, result []byte, ttl time.Duration) error
}

// Config stores the settings of an Analyzer.
type Config struct {
	// Registry returns the client used to resolve packages of an
	// ecosystem. Nil means the live adapters with default endpoints.
	Registry func(eco ecosystem.Ecosystem) (registry.Client, error)
	// OSV is the advisory database client. Nil means the public API.
	OSV *osv.Client
	// KEV is the known-exploited-vulnerabilities feed client. Nil means
	// the public feed.
	KEV *kev.Client
	// Cache persists finished analyses. Nil disables caching.
	Cache ResultCache
	// Timeout is the wall-clock budget for one analysis. Zero means
	// DefaultTimeout.
	Timeout time.Duration
	// MaxDepth bounds transitive resolution. Zero means
	// graph.DefaultMaxDepth.
	MaxDepth int
	// Now is the clock consulted for budget checks and scoring. Nil means
	// time.Now.
	Now func() time.Time
}

// Analyzer is the main entry point of the analyser.
type Analyzer struct {
	cfg Config
}

// New creates an Analyzer, filling unset config fields with defaults.
func New(cfg Config) *Analyzer {
	if cfg.Registry == nil {
		cfg.Registry = func(eco ecosystem.Ecosystem) (registry.Client, error) {
			return registry.New(eco, registry.Config{})
		}
	}
	if cfg.OSV == nil {
		cfg.OSV = &osv.Client{}
	}
	if cfg.KEV == nil {
		cfg.KEV = &kev.Client{}
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.MaxDepth == 0 {
		cfg.MaxDepth = graph.DefaultMaxDepth
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Analyzer{cfg: cfg}
}

// Analyze resolves, scores and summarises the dependencies declared in
// manifestText. Upstream failures degrade the result instead of failing it:
// packages whose registry fetch failed are reported with riskLevel
// "unknown", and advisory gaps leave nodes without vulnerabilities. The
// returned error is non-nil only for invalid input or an internal fault.
func (a *Analyzer) Analyze(ctx context.Context, manifestText string, eco ecosystem.Ecosystem) (*analysis.Result, error) {
	if strings.TrimSpace(manifestText) == "" {
		return nil, fmt.Errorf("%w: manifest is empty", ErrInvalidInput)
	}
	eco, err := ecosystem.Parse(string(eco))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}

	key := cache.Key(manifestText)
	if r, ok := a.cached(key); ok {
		return r, nil
	}

	start := a.cfg.Now()
	deadline := start.Add(a.cfg.Timeout)

	deps := manifest.Parse(eco, manifestText)
	if len(deps) == 0 {
		return nil, fmt.Errorf("%w: no dependencies found in manifest", ErrInvalidInput)
	}

	client, err := a.cfg.Registry(eco)
	if err != nil {
		return nil, fmt.Errorf("building %s registry client: %w", eco, err)
	}

	resolver := &graph.Resolver{
		Client:    client,
		Ecosystem: eco,
		MaxDepth:  a.cfg.MaxDepth,
		Deadline:  deadline,
		Now:       a.cfg.Now,
	}
	g := graph.New()
	for i, d := range deps {
		if a.cfg.Now().After(deadline) {
			log.Warnf("analysis budget exhausted after %d of %d direct dependencies", i, len(deps))
			break
		}
		resolver.Resolve(ctx, g, d.Name, d.Version)
	}
	nodes := g.NodeList()

	var upstreamErr error

	queries := make([]*osv.Query, len(nodes))
	for i, n := range nodes {
		queries[i] = osv.QueryFor(eco, n.Name, n.Version)
	}
	matches, err := a.cfg.OSV.Match(ctx, queries)
	if err != nil {
		upstreamErr = multierr.Append(upstreamErr, err)
	}
	exploited, err := a.cfg.KEV.ExploitedCVEs(ctx)
	if err != nil {
		upstreamErr = multierr.Append(upstreamErr, err)
	}
	for i, n := range nodes {
		vulns := []analysis.Vulnerability{}
		for _, v := range matches[i] {
			vulns = append(vulns, risk.Convert(v, exploited))
		}
		n.Vulnerabilities = vulns
	}

	scorer := &risk.Scorer{Now: a.cfg.Now}
	for _, n := range nodes {
		scorer.Score(n)
	}

	riskiest := paths.Riskiest(g, a.cfg.MaxDepth)
	if riskiest == nil {
		riskiest = []analysis.Path{}
	}

	direct := 0
	for _, n := range nodes {
		if n.IsDirect {
			direct++
		}
	}
	result := &analysis.Result{
		Ecosystem:              string(eco),
		Root:                   analysis.ProjectRoot,
		TotalDependencies:      len(nodes),
		DirectDependencies:     direct,
		TransitiveDependencies: len(nodes) - direct,
		RiskSummary:            summarise(nodes),
		Nodes:                  nodes,
		RiskiestPaths:          riskiest,
	}

	if err := a.store(key, result); err != nil {
		upstreamErr = multierr.Append(upstreamErr, err)
	}
	if upstreamErr != nil {
		log.Warnf("analysis completed with suppressed upstream failures: %v", upstreamErr)
	}
	return result, nil
}

// cached returns the stored result for key when a live entry exists. Cache
// failures read as misses.
func (a *Analyzer) cached(key string) (*analysis.Result, bool) {
	if a.cfg.Cache == nil {
		return nil, false
	}
	body, ok, err := a.cfg.Cache.Get(key)
	if err != nil {
		log.Debugf("cache read for %s failed: %v", key, err)
		return nil, false
	}
	if !ok {
		return nil, false
	}
	var r analysis.Result
	if err := json.Unmarshal(body, &r); err != nil {
		log.Debugf("cache entry for %s is not decodable: %v", key, err)
		return nil, false
	}
	return &r, true
}

func (a *Analyzer) store(key string, r *analysis.Result) error {
	if a.cfg.Cache == nil {
		return nil
	}
	body, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("encoding result for cache: %w", err)
	}
	if err := a.cfg.Cache.Put(key, body, cacheTTL); err != nil {
		return fmt.Errorf("caching result: %w", err)
	}
	return nil
}

// summarise counts scored nodes per risk level. Nodes with riskLevel
// "unknown" are excluded from the summary.
func summarise(nodes []*analysis.Node) analysis.RiskSummary {
	var s analysis.RiskSummary
	for _, n := range nodes {
		switch n.RiskLevel {
		case analysis.RiskCritical:
			s.Critical++
		case analysis.RiskHigh:
			s.High++
		case analysis.RiskMedium:
			s.Medium++
		case analysis.RiskLow:
			s.Low++
		case analysis.RiskNone:
			s.None++
		}
	}
	return s
}
