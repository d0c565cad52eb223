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

package sbom_test

import (
	"bytes"
	"regexp"
	"testing"
	"time"

	"github.com/CycloneDX/cyclonedx-go"
	"github.com/google/go-cmp/cmp"

	"github.com/nfroze/bastion/analysis"
	"github.com/nfroze/bastion/ecosystem"
	"github.com/nfroze/bastion/sbom"
)

func node(name, version string, dependsOn ...string) *analysis.Node {
	if dependsOn == nil {
		dependsOn = []string{}
	}
	return &analysis.Node{
		Name:         name,
		Version:      version,
		DependsOn:    dependsOn,
		DependedOnBy: []string{},
	}
}

// encode round-trips the BOM through the JSON encoder so tests observe what
// consumers receive.
func encode(t *testing.T, bom *cyclonedx.BOM) *cyclonedx.BOM {
	t.Helper()
	var buf bytes.Buffer
	if err := sbom.Encode(&buf, bom); err != nil {
		t.Fatalf("Encode() returned error: %v", err)
	}
	var got cyclonedx.BOM
	if err := cyclonedx.NewBOMDecoder(&buf, cyclonedx.BOMFileFormatJSON).Decode(&got); err != nil {
		t.Fatalf("decoding generated BOM: %v", err)
	}
	return &got
}

func TestToCDX(t *testing.T) {
	nodes := []*analysis.Node{
		node("a", "1", "b@2"),
		node("b", "2"),
	}
	got := encode(t, sbom.ToCDX(nodes, ecosystem.NPM, sbom.Config{}))

	if got.BOMFormat != "CycloneDX" {
		t.Errorf("bomFormat = %q, want %q", got.BOMFormat, "CycloneDX")
	}
	if got.SpecVersion != cyclonedx.SpecVersion1_5 {
		t.Errorf("specVersion = %v, want %v", got.SpecVersion, cyclonedx.SpecVersion1_5)
	}
	if got.Version != 1 {
		t.Errorf("version = %d, want 1", got.Version)
	}
	serialRe := regexp.MustCompile(`^urn:uuid:[0-9a-f-]{36}$`)
	if !serialRe.MatchString(got.SerialNumber) {
		t.Errorf("serialNumber = %q, want match for %v", got.SerialNumber, serialRe)
	}
	if _, err := time.Parse("2006-01-02T15:04:05Z", got.Metadata.Timestamp); err != nil {
		t.Errorf("metadata timestamp %q not in expected format: %v", got.Metadata.Timestamp, err)
	}

	wantTools := []cyclonedx.Component{{
		Type:        cyclonedx.ComponentTypeApplication,
		Name:        "Bastion",
		Version:     "1.0.0",
		Description: "Dependency risk analyser",
	}}
	if diff := cmp.Diff(wantTools, *got.Metadata.Tools.Components); diff != "" {
		t.Errorf("metadata tools mismatch (-want +got):\n%s", diff)
	}

	wantRoot := &cyclonedx.Component{
		Type:    cyclonedx.ComponentTypeApplication,
		Name:    "project",
		Version: "0.0.0",
		BOMRef:  "project@0.0.0",
	}
	if diff := cmp.Diff(wantRoot, got.Metadata.Component); diff != "" {
		t.Errorf("metadata component mismatch (-want +got):\n%s", diff)
	}

	wantComponents := []cyclonedx.Component{
		{BOMRef: "a@1", Type: cyclonedx.ComponentTypeLibrary, Name: "a", Version: "1", PackageURL: "pkg:npm/a@1"},
		{BOMRef: "b@2", Type: cyclonedx.ComponentTypeLibrary, Name: "b", Version: "2", PackageURL: "pkg:npm/b@2"},
	}
	if diff := cmp.Diff(wantComponents, *got.Components); diff != "" {
		t.Errorf("components mismatch (-want +got):\n%s", diff)
	}

	wantDeps := []cyclonedx.Dependency{
		{Ref: "a@1", Dependencies: &[]string{"b@2"}},
		{Ref: "b@2", Dependencies: &[]string{}},
	}
	if diff := cmp.Diff(wantDeps, *got.Dependencies); diff != "" {
		t.Errorf("dependencies mismatch (-want +got):\n%s", diff)
	}

	if len(*got.Vulnerabilities) != 0 {
		t.Errorf("vulnerabilities length = %d, want 0", len(*got.Vulnerabilities))
	}
}

func TestToCDXLicences(t *testing.T) {
	n := node("left-pad", "1.3.0")
	n.Licence = analysis.Licence{SPDX: "MIT", Risk: analysis.LicenceLow}
	got := encode(t, sbom.ToCDX([]*analysis.Node{n}, ecosystem.NPM, sbom.Config{}))

	want := &cyclonedx.Licenses{{License: &cyclonedx.License{ID: "MIT"}}}
	if diff := cmp.Diff(want, (*got.Components)[0].Licenses); diff != "" {
		t.Errorf("component licenses mismatch (-want +got):\n%s", diff)
	}
}

func TestToCDXVulnerabilities(t *testing.T) {
	n := node("minimist", "1.2.0")
	n.Vulnerabilities = []analysis.Vulnerability{
		{
			ID:       "GHSA-xvch-5gv4-984h",
			Summary:  "Prototype pollution in minimist",
			Severity: "CRITICAL",
			CVSS:     9.8,
			FixedIn:  "1.2.6",
			CISAKEV:  true,
		},
		{
			ID:       "GHSA-7fhm-mqm4-2wp7",
			Summary:  "Regular expression denial of service",
			Severity: "UNKNOWN",
		},
	}
	got := encode(t, sbom.ToCDX([]*analysis.Node{n}, ecosystem.NPM, sbom.Config{}))

	score := 9.8
	want := []cyclonedx.Vulnerability{
		{
			ID:     "GHSA-xvch-5gv4-984h",
			Source: &cyclonedx.Source{Name: "OSV", URL: "https://osv.dev"},
			Ratings: &[]cyclonedx.VulnerabilityRating{{
				Score:    &score,
				Severity: cyclonedx.SeverityCritical,
				Method:   cyclonedx.ScoringMethodCVSSv3,
			}},
			Description: "Prototype pollution in minimist",
			Affects: &[]cyclonedx.Affects{{
				Ref:   "minimist@1.2.0",
				Range: &[]cyclonedx.AffectedVersions{{Version: "1.2.0"}},
			}},
			Analysis:       &cyclonedx.VulnerabilityAnalysis{State: cyclonedx.IASExploitable},
			Recommendation: "Upgrade to 1.2.6",
		},
		{
			ID:          "GHSA-7fhm-mqm4-2wp7",
			Source:      &cyclonedx.Source{Name: "OSV", URL: "https://osv.dev"},
			Ratings:     &[]cyclonedx.VulnerabilityRating{},
			Description: "Regular expression denial of service",
			Affects: &[]cyclonedx.Affects{{
				Ref:   "minimist@1.2.0",
				Range: &[]cyclonedx.AffectedVersions{{Version: "1.2.0"}},
			}},
			Analysis: &cyclonedx.VulnerabilityAnalysis{State: cyclonedx.IASInTriage},
		},
	}
	if diff := cmp.Diff(want, *got.Vulnerabilities); diff != "" {
		t.Errorf("vulnerabilities mismatch (-want +got):\n%s", diff)
	}
}

func TestToCDXRootComponent(t *testing.T) {
	got := encode(t, sbom.ToCDX(nil, ecosystem.NPM, sbom.Config{Root: "my-service@2.1.0"}))

	want := &cyclonedx.Component{
		Type:    cyclonedx.ComponentTypeApplication,
		Name:    "my-service",
		Version: "2.1.0",
		BOMRef:  "my-service@2.1.0",
	}
	if diff := cmp.Diff(want, got.Metadata.Component); diff != "" {
		t.Errorf("metadata component mismatch (-want +got):\n%s", diff)
	}
}

func TestToCDXRoundTripInvariants(t *testing.T) {
	databind := node("com.fasterxml.jackson.core:jackson-databind", "2.15.0",
		"com.fasterxml.jackson.core:jackson-annotations@2.15.0")
	databind.Licence = analysis.Licence{SPDX: "Apache-2.0", Risk: analysis.LicenceLow}
	databind.Vulnerabilities = []analysis.Vulnerability{
		{ID: "GHSA-rgv9-q543-rqg4", Summary: "Deep wrapper array nesting", Severity: "HIGH", CVSS: 7.5, FixedIn: "2.15.1"},
	}
	annotations := node("com.fasterxml.jackson.core:jackson-annotations", "2.15.0")

	nodes := []*analysis.Node{databind, annotations}
	got := encode(t, sbom.ToCDX(nodes, ecosystem.Maven, sbom.Config{}))

	if len(*got.Components) != len(nodes) {
		t.Fatalf("components length = %d, want %d", len(*got.Components), len(nodes))
	}

	wantPurl := "pkg:maven/com.fasterxml.jackson.core/jackson-databind@2.15.0"
	if purl := (*got.Components)[0].PackageURL; purl != wantPurl {
		t.Errorf("maven purl = %q, want %q", purl, wantPurl)
	}

	refs := map[string]bool{}
	for _, c := range *got.Components {
		refs[c.BOMRef] = true
	}
	for _, d := range *got.Dependencies {
		if !refs[d.Ref] {
			t.Errorf("dependencies ref %q matches no component bom-ref", d.Ref)
		}
		for _, ref := range *d.Dependencies {
			if !refs[ref] {
				t.Errorf("dependsOn ref %q matches no component bom-ref", ref)
			}
		}
	}
	for _, v := range *got.Vulnerabilities {
		affects := *v.Affects
		if len(affects) != 1 {
			t.Fatalf("vulnerability %s affects length = %d, want 1", v.ID, len(affects))
		}
		if !refs[affects[0].Ref] {
			t.Errorf("vulnerability %s affects %q which matches no component bom-ref", v.ID, affects[0].Ref)
		}
	}
}
