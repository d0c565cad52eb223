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

// Package sbom converts an annotated dependency node list into a CycloneDX
// 1.5 document with embedded VEX vulnerability records.
package sbom

import (
	"io"
	"strings"
	"time"

	"github.com/CycloneDX/cyclonedx-go"
	"github.com/google/uuid"

	"github.com/nfroze/bastion/analysis"
	"github.com/nfroze/bastion/ecosystem"
	"github.com/nfroze/bastion/purl"
)

const (
	toolName        = "Bastion"
	toolVersion     = "1.0.0"
	toolDescription = "Dependency risk analyser"

	advisorySource    = "OSV"
	advisorySourceURL = "https://osv.dev"
)

// Config describes document-level settings for the generated BOM.
type Config struct {
	// Root names the top-level component the document describes, as a
	// "name@version" key. Empty means analysis.ProjectRoot.
	Root string
}

// ToCDX converts annotated dependency nodes into a CycloneDX BOM. Each node
// becomes one library component keyed by its "name@version" bom-ref, each
// forward edge a dependencies entry, and each advisory on a node a VEX
// record whose analysis state reflects known exploitation.
func ToCDX(nodes []*analysis.Node, eco ecosystem.Ecosystem, c Config) *cyclonedx.BOM {
	root := c.Root
	if root == "" {
		root = analysis.ProjectRoot
	}
	rootParts := strings.Split(root, "@")

	bom := cyclonedx.NewBOM()
	bom.SerialNumber = "urn:uuid:" + uuid.New().String()
	bom.Metadata = &cyclonedx.Metadata{
		Timestamp: time.Now().UTC().Format("2006-01-02T15:04:05Z"),
		Tools: &cyclonedx.ToolsChoice{
			Components: &[]cyclonedx.Component{
				{
					Type:        cyclonedx.ComponentTypeApplication,
					Name:        toolName,
					Version:     toolVersion,
					Description: toolDescription,
				},
			},
		},
		Component: &cyclonedx.Component{
			Type:    cyclonedx.ComponentTypeApplication,
			Name:    rootParts[0],
			Version: rootParts[len(rootParts)-1],
			BOMRef:  root,
		},
	}

	comps := make([]cyclonedx.Component, 0, len(nodes))
	deps := make([]cyclonedx.Dependency, 0, len(nodes))
	vulns := []cyclonedx.Vulnerability{}
	for _, n := range nodes {
		ref := n.Key()

		comp := cyclonedx.Component{
			BOMRef:     ref,
			Type:       cyclonedx.ComponentTypeLibrary,
			Name:       n.Name,
			Version:    n.Version,
			PackageURL: purl.String(eco, n.Name, n.Version),
		}
		if spdx := n.Licence.SPDX; spdx != "" {
			comp.Licenses = &cyclonedx.Licenses{{License: &cyclonedx.License{ID: spdx}}}
		}
		comps = append(comps, comp)

		dependsOn := make([]string, len(n.DependsOn))
		copy(dependsOn, n.DependsOn)
		deps = append(deps, cyclonedx.Dependency{Ref: ref, Dependencies: &dependsOn})

		for _, v := range n.Vulnerabilities {
			vulns = append(vulns, toVEX(v, ref, n.Version))
		}
	}
	bom.Components = &comps
	bom.Dependencies = &deps
	bom.Vulnerabilities = &vulns

	return bom
}

// toVEX builds the VEX record for one advisory on one component.
func toVEX(v analysis.Vulnerability, ref, version string) cyclonedx.Vulnerability {
	// Ratings and affected versions are emitted even when empty so that
	// consumers see explicit arrays rather than absent fields.
	ratings := []cyclonedx.VulnerabilityRating{}
	if v.CVSS > 0 {
		score := v.CVSS
		severity := strings.ToLower(v.Severity)
		if severity == "" {
			severity = "unknown"
		}
		ratings = append(ratings, cyclonedx.VulnerabilityRating{
			Score:    &score,
			Severity: cyclonedx.Severity(severity),
			Method:   cyclonedx.ScoringMethodCVSSv3,
		})
	}

	affected := []cyclonedx.AffectedVersions{}
	if version != "" {
		affected = append(affected, cyclonedx.AffectedVersions{Version: version})
	}

	state := cyclonedx.IASInTriage
	if v.CISAKEV {
		state = cyclonedx.IASExploitable
	}

	entry := cyclonedx.Vulnerability{
		ID:          v.ID,
		Source:      &cyclonedx.Source{Name: advisorySource, URL: advisorySourceURL},
		Ratings:     &ratings,
		Description: v.Summary,
		Affects:     &[]cyclonedx.Affects{{Ref: ref, Range: &affected}},
		Analysis:    &cyclonedx.VulnerabilityAnalysis{State: state},
	}
	if v.FixedIn != "" {
		entry.Recommendation = "Upgrade to " + v.FixedIn
	}
	return entry
}

// Encode serialises the BOM as CycloneDX 1.5 JSON.
func Encode(w io.Writer, bom *cyclonedx.BOM) error {
	return cyclonedx.NewBOMEncoder(w, cyclonedx.BOMFileFormatJSON).
		EncodeVersion(bom, cyclonedx.SpecVersion1_5)
}
