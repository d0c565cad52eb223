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

// Package paths surfaces the most hazardous dependency chains of a scored
// graph: every simple path from a risky direct dependency down to a risky
// terminal, ranked by the highest score along the way.
package paths

import (
	"fmt"
	"slices"
	"sort"

	"bitbucket.org/creachadair/stringset"

	"github.com/nfroze/bastion/analysis"
	"github.com/nfroze/bastion/graph"
)

// maxPaths is how many records Riskiest returns.
const maxPaths = 3

// Riskiest enumerates simple paths downward from every direct dependency
// with a positive risk score and returns the top records by maximum score
// along the path. maxDepth bounds the walk; zero means the resolver's
// default depth.
func Riskiest(g *graph.Graph, maxDepth int) []analysis.Path {
	if maxDepth <= 0 {
		maxDepth = graph.DefaultMaxDepth
	}

	var records []analysis.Path
	for _, key := range g.Order {
		node := g.Nodes[key]
		if !node.IsDirect || node.RiskScore <= 0 {
			continue
		}
		walk(g, key, nil, stringset.New(), maxDepth, &records)
	}

	sort.SliceStable(records, func(i, j int) bool {
		return records[i].MaxRiskScore > records[j].MaxRiskScore
	})
	if len(records) > maxPaths {
		records = records[:maxPaths]
	}
	return records
}

// walk extends the trail with key and either descends into unvisited
// children or, at a leaf or the depth bound, emits a record when the
// terminal node is risky enough. Each branch walks its own copy of the
// visited set so that sibling branches may pass through shared packages.
func walk(g *graph.Graph, key string, trail []string, visited stringset.Set, maxDepth int, records *[]analysis.Path) {
	node := g.Nodes[key]
	trail = append(slices.Clone(trail), key)
	visited.Add(key)

	var children []string
	if len(trail) <= maxDepth {
		for _, child := range node.DependsOn {
			if !visited.Contains(child) {
				children = append(children, child)
			}
		}
	}

	if len(children) == 0 {
		if node.RiskScore > 20 {
			*records = append(*records, analysis.Path{
				Path:         append([]string{analysis.ProjectRoot}, trail...),
				MaxRiskScore: maxScore(g, trail),
				Reason:       reason(node),
			})
		}
		return
	}

	for _, child := range children {
		walk(g, child, trail, stringset.New(visited.Elements()...), maxDepth, records)
	}
}

func maxScore(g *graph.Graph, trail []string) int {
	highest := 0
	for _, key := range trail {
		if s := g.Nodes[key].RiskScore; s > highest {
			highest = s
		}
	}
	return highest
}

func reason(leaf *analysis.Node) string {
	for _, v := range leaf.Vulnerabilities {
		if v.CISAKEV {
			return "CVE with CISA KEV listing"
		}
	}
	if n := len(leaf.Vulnerabilities); n > 0 {
		return fmt.Sprintf("%d known vulnerabilities", n)
	}
	return "Elevated risk score"
}
