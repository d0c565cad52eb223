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

// Package analysis holds the data model shared by the resolver, the risk
// scorer, the path analyser, the SBOM emitter and the HTTP surface: the
// annotated dependency graph node and the analysis result envelope.
//
// Field names and JSON tags are part of the public API consumed by clients;
// they must not drift.
package analysis

// Key returns the canonical identity of a package: "name@version", or the
// bare name when the version is empty. It is the map key of the package set
// and the cross-reference used in edges, riskiest paths and SBOM bom-refs.
func Key(name, version string) string {
	if version == "" {
		return name
	}
	return name + "@" + version
}

// RiskLevel is the discrete risk bucket derived from a node's score and
// exploited status.
type RiskLevel string

// Risk levels, least to most severe. Unknown is reserved for nodes whose
// resolution failed.
const (
	RiskNone     RiskLevel = "none"
	RiskLow      RiskLevel = "low"
	RiskMedium   RiskLevel = "medium"
	RiskHigh     RiskLevel = "high"
	RiskCritical RiskLevel = "critical"
	RiskUnknown  RiskLevel = "unknown"
)

// ReleaseFrequency buckets how actively a package is being published.
type ReleaseFrequency string

// Release frequency buckets.
const (
	ReleaseNew      ReleaseFrequency = "new"
	ReleaseActive   ReleaseFrequency = "active"
	ReleaseModerate ReleaseFrequency = "moderate"
	ReleaseLow      ReleaseFrequency = "low"
	ReleaseUnknown  ReleaseFrequency = "unknown"
)

// LicenceRisk classifies a licence's copyleft exposure.
type LicenceRisk string

// Licence risk buckets.
const (
	LicenceLow     LicenceRisk = "low"
	LicenceMedium  LicenceRisk = "medium"
	LicenceHigh    LicenceRisk = "high"
	LicenceUnknown LicenceRisk = "unknown"
)

// Vulnerability is one advisory attached to a package node.
type Vulnerability struct {
	// ID is the advisory identifier (e.g. GHSA-xxxx or CVE-xxxx).
	ID string `json:"id"`
	// Summary is the advisory summary, truncated to 300 characters.
	Summary string `json:"summary"`
	// Severity is one of CRITICAL, HIGH, MEDIUM, LOW, UNKNOWN.
	Severity string `json:"severity"`
	// CVSS is the derived numeric score, 0 when absent.
	CVSS float64 `json:"cvss"`
	// FixedIn is the version carrying the fix, possibly empty.
	FixedIn string `json:"fixedIn"`
	// CISAKEV reports whether the advisory maps to a CVE on the CISA
	// Known Exploited Vulnerabilities list.
	CISAKEV bool `json:"cisaKev"`
}

// Maintenance carries the publication and popularity signals read from the
// package's registry.
type Maintenance struct {
	LastPublished    string           `json:"lastPublished"`
	FirstPublished   string           `json:"firstPublished"`
	WeeklyDownloads  int              `json:"weeklyDownloads"`
	ReleaseFrequency ReleaseFrequency `json:"releaseFrequency"`
}

// Licence carries the normalised licence identifier and its risk bucket.
type Licence struct {
	SPDX string      `json:"spdx"`
	Risk LicenceRisk `json:"risk"`
}

// Node is one package in the resolved dependency graph. Nodes are created
// by the graph resolver, annotated by the risk scorer, and immutable
// afterwards.
type Node struct {
	Name      string `json:"name"`
	Version   string `json:"version"`
	Ecosystem string `json:"ecosystem"`
	// Depth is the distance from the manifest: direct dependencies are 0.
	Depth    int  `json:"depth"`
	IsDirect bool `json:"isDirect"`

	RiskLevel       RiskLevel       `json:"riskLevel"`
	RiskScore       int             `json:"riskScore"`
	Vulnerabilities []Vulnerability `json:"vulnerabilities"`
	Maintenance     Maintenance     `json:"maintenance"`
	Licence         Licence         `json:"licence"`

	// DependsOn and DependedOnBy hold Keys of adjacent nodes. Every key
	// listed is guaranteed to exist in the node set, and each forward
	// edge has a matching reverse edge.
	DependsOn    []string `json:"dependsOn"`
	DependedOnBy []string `json:"dependedOnBy"`

	// ResolutionError is set when the registry fetch for this node
	// failed; such nodes score as riskLevel "unknown".
	ResolutionError bool `json:"resolutionError,omitempty"`
}

// Key returns the node's canonical identity.
func (n *Node) Key() string { return Key(n.Name, n.Version) }

// Path is one hazardous dependency chain from the project root.
type Path struct {
	// Path lists the project pseudo-root followed by the Keys of every
	// node along the chain.
	Path []string `json:"path"`
	// MaxRiskScore is the highest risk score seen along the chain.
	MaxRiskScore int `json:"maxRiskScore"`
	// Reason states why the terminal node is considered hazardous.
	Reason string `json:"reason"`
}

// RiskSummary counts scored nodes per level. Unknown nodes are excluded.
type RiskSummary struct {
	Critical int `json:"critical"`
	High     int `json:"high"`
	Medium   int `json:"medium"`
	Low      int `json:"low"`
	None     int `json:"none"`
}

// Result is the full analysis response for one manifest.
type Result struct {
	Ecosystem              string      `json:"ecosystem"`
	Root                   string      `json:"root"`
	TotalDependencies      int         `json:"totalDependencies"`
	DirectDependencies     int         `json:"directDependencies"`
	TransitiveDependencies int         `json:"transitiveDependencies"`
	RiskSummary            RiskSummary `json:"riskSummary"`
	Nodes                  []*Node     `json:"nodes"`
	RiskiestPaths          []Path      `json:"riskiestPaths"`
}

// ProjectRoot is the pseudo-root identity used for the analysed project
// itself in riskiest paths and as the default SBOM root component.
const ProjectRoot = "project@0.0.0"
