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

// Package graph builds the transitive dependency graph of a project by
// bounded-depth, memoised depth-first traversal against a registry.
package graph

import (
	"context"
	"time"

	"github.com/nfroze/bastion/analysis"
	"github.com/nfroze/bastion/ecosystem"
	"github.com/nfroze/bastion/log"
	"github.com/nfroze/bastion/registry"
)

// DefaultMaxDepth caps how far below a direct dependency the resolver
// descends.
const DefaultMaxDepth = 5

// Graph is a set of resolved packages keyed by their canonical name@version
// form, with insertion order preserved.
type Graph struct {
	Nodes map[string]*analysis.Node
	Order []string
}

// New returns an empty graph.
func New() *Graph {
	return &Graph{Nodes: make(map[string]*analysis.Node)}
}

// Add inserts a node. The caller must not add two nodes with the same key.
func (g *Graph) Add(n *analysis.Node) {
	key := n.Key()
	g.Nodes[key] = n
	g.Order = append(g.Order, key)
}

// NodeList returns the nodes in insertion order.
func (g *Graph) NodeList() []*analysis.Node {
	out := make([]*analysis.Node, 0, len(g.Order))
	for _, key := range g.Order {
		out = append(out, g.Nodes[key])
	}
	return out
}

// Resolver traverses package dependencies depth-first, recording every
// package it encounters exactly once. Cycles terminate on the presence
// check; a package already in the graph is never revisited.
type Resolver struct {
	Client    registry.Client
	Ecosystem ecosystem.Ecosystem

	// MaxDepth bounds the traversal depth. Zero means DefaultMaxDepth.
	MaxDepth int

	// Deadline is the wall-clock budget shared by the whole analysis.
	// Once passed, no new packages are resolved; already-inserted nodes
	// are kept. The zero value disables the budget.
	Deadline time.Time

	// Now is the clock the deadline is checked against. Nil means time.Now.
	Now func() time.Time
}

// Resolve traverses from one direct dependency, adding every reachable
// package to g. It never fails: a registry error marks the node with a
// resolution error and the traversal continues elsewhere.
func (r *Resolver) Resolve(ctx context.Context, g *Graph, name, version string) {
	r.resolve(ctx, g, name, version, 0)
}

func (r *Resolver) resolve(ctx context.Context, g *Graph, name, version string, depth int) {
	if !r.Deadline.IsZero() && r.now().After(r.Deadline) {
		return
	}
	if depth > r.maxDepth() {
		return
	}

	key := analysis.Key(name, version)
	if _, ok := g.Nodes[key]; ok {
		return
	}

	node := &analysis.Node{
		Name:         name,
		Version:      version,
		Ecosystem:    string(r.Ecosystem),
		Depth:        depth,
		IsDirect:     depth == 0,
		DependsOn:    []string{},
		DependedOnBy: []string{},
	}
	g.Add(node)

	pkg, err := r.Client.Fetch(ctx, name, version)
	if err != nil {
		log.Debugf("resolving %s: %v", key, err)
		node.ResolutionError = true
		return
	}

	node.Maintenance.FirstPublished = pkg.Metadata.FirstPublished
	node.Maintenance.LastPublished = pkg.Metadata.LastPublished
	node.Maintenance.WeeklyDownloads = pkg.Metadata.WeeklyDownloads
	// The raw licence string is normalised later, during scoring.
	node.Licence.SPDX = pkg.Metadata.Licence

	for _, dep := range pkg.Dependencies {
		childKey := analysis.Key(dep.Name, dep.Version)
		r.resolve(ctx, g, dep.Name, dep.Version, depth+1)

		// Record the edge pair only when the child made it into the graph;
		// a depth- or budget-capped child would otherwise leave a dangling
		// reference.
		if child, ok := g.Nodes[childKey]; ok {
			node.DependsOn = append(node.DependsOn, childKey)
			child.DependedOnBy = append(child.DependedOnBy, key)
		}
	}
}

func (r *Resolver) now() time.Time {
	if r.Now != nil {
		return r.Now()
	}
	return time.Now()
}

func (r *Resolver) maxDepth() int {
	if r.MaxDepth > 0 {
		return r.MaxDepth
	}
	return DefaultMaxDepth
}
