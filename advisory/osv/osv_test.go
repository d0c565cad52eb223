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

package osv_test

import (
	"context"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/nfroze/bastion/advisory/osv"
	"github.com/nfroze/bastion/ecosystem"
	"github.com/nfroze/bastion/internal/clienttest"
)

func TestQueryFor(t *testing.T) {
	tests := []struct {
		name    string
		eco     ecosystem.Ecosystem
		pkg     string
		version string
		want    *osv.Query
	}{
		{
			name:    "pinned version",
			eco:     ecosystem.NPM,
			pkg:     "lodash",
			version: "4.17.20",
			want: &osv.Query{
				Package: osv.Package{Name: "lodash", Ecosystem: "npm"},
				Version: "4.17.20",
			},
		},
		{
			name: "empty version omitted",
			eco:  ecosystem.PyPI,
			pkg:  "requests",
			want: &osv.Query{Package: osv.Package{Name: "requests", Ecosystem: "PyPI"}},
		},
		{
			name:    "latest omitted",
			eco:     ecosystem.Cargo,
			pkg:     "serde",
			version: "latest",
			want:    &osv.Query{Package: osv.Package{Name: "serde", Ecosystem: "crates.io"}},
		},
		{
			name:    "go label",
			eco:     ecosystem.Go,
			pkg:     "github.com/gin-gonic/gin",
			version: "1.9.0",
			want: &osv.Query{
				Package: osv.Package{Name: "github.com/gin-gonic/gin", Ecosystem: "Go"},
				Version: "1.9.0",
			},
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := osv.QueryFor(tc.eco, tc.pkg, tc.version)
			if diff := cmp.Diff(tc.want, got); diff != "" {
				t.Errorf("QueryFor(%v, %q, %q) diff (-want +got):\n%s", tc.eco, tc.pkg, tc.version, diff)
			}
		})
	}
}

func TestMatch(t *testing.T) {
	srv := clienttest.NewMockHTTPServer(t)
	srv.SetResponse(t, "/v1/querybatch", []byte(`{
		"results": [
			{"vulns": [{"id": "GHSA-aaaa"}]},
			{},
			{"vulns": [{"id": "GHSA-aaaa"}, {"id": "GHSA-bbbb"}]}
		]
	}`))
	srv.SetResponse(t, "/v1/vulns/GHSA-aaaa", []byte(`{
		"id": "GHSA-aaaa",
		"summary": "Prototype pollution",
		"aliases": ["CVE-2020-8203"],
		"severity": [{"type": "CVSS_V3", "score": "CVSS:3.1/AV:N/AC:H/PR:N/UI:N/S:U/C:N/I:H/A:H"}],
		"affected": [{"ranges": [{"type": "SEMVER", "events": [{"introduced": "0"}, {"fixed": "4.17.19"}]}]}],
		"database_specific": {"severity": "HIGH"}
	}`))
	srv.SetResponse(t, "/v1/vulns/GHSA-bbbb", []byte(`{
		"id": "GHSA-bbbb",
		"summary": "Command injection"
	}`))

	c := &osv.Client{BaseURL: srv.URL}
	queries := []*osv.Query{
		osv.QueryFor(ecosystem.NPM, "lodash", "4.17.15"),
		osv.QueryFor(ecosystem.NPM, "left-pad", "1.3.0"),
		osv.QueryFor(ecosystem.NPM, "lodash", "4.17.11"),
	}

	matches, err := c.Match(context.Background(), queries)
	if err != nil {
		t.Fatalf("Match() returned error: %v", err)
	}
	if len(matches) != 3 {
		t.Fatalf("Match() returned %d result sets, want 3", len(matches))
	}
	if len(matches[0]) != 1 || matches[0][0].ID != "GHSA-aaaa" {
		t.Errorf("matches[0] = %+v, want single GHSA-aaaa", matches[0])
	}
	if len(matches[1]) != 0 {
		t.Errorf("matches[1] = %+v, want none", matches[1])
	}
	if len(matches[2]) != 2 {
		t.Fatalf("matches[2] has %d records, want 2", len(matches[2]))
	}
	if matches[2][0].ID != "GHSA-aaaa" || matches[2][1].ID != "GHSA-bbbb" {
		t.Errorf("matches[2] ids = [%s %s], want [GHSA-aaaa GHSA-bbbb]", matches[2][0].ID, matches[2][1].ID)
	}

	got := matches[0][0]
	if got.Summary != "Prototype pollution" {
		t.Errorf("GHSA-aaaa summary = %q", got.Summary)
	}
	if len(got.Aliases) != 1 || got.Aliases[0] != "CVE-2020-8203" {
		t.Errorf("GHSA-aaaa aliases = %v", got.Aliases)
	}
	if len(got.Severity) != 1 || got.Severity[0].Type != "CVSS_V3" {
		t.Errorf("GHSA-aaaa severity = %+v", got.Severity)
	}
	if sev, _ := got.DatabaseSpecific["severity"].(string); sev != "HIGH" {
		t.Errorf("GHSA-aaaa database_specific severity = %q, want HIGH", sev)
	}
	if got.Affected[0].Ranges[0].Events[1].Fixed != "4.17.19" {
		t.Errorf("GHSA-aaaa fixed event = %+v", got.Affected[0].Ranges[0].Events)
	}
}

func TestMatchPartialHydration(t *testing.T) {
	srv := clienttest.NewMockHTTPServer(t)
	srv.SetResponse(t, "/v1/querybatch", []byte(`{
		"results": [{"vulns": [{"id": "GHSA-ok"}, {"id": "GHSA-gone"}]}]
	}`))
	srv.SetResponse(t, "/v1/vulns/GHSA-ok", []byte(`{"id": "GHSA-ok"}`))

	c := &osv.Client{BaseURL: srv.URL}
	matches, err := c.Match(context.Background(), []*osv.Query{
		osv.QueryFor(ecosystem.NPM, "something", "1.0.0"),
	})
	if err == nil {
		t.Error("Match() with failing hydration returned nil error, want lookup failure")
	}
	if len(matches) != 1 || len(matches[0]) != 1 || matches[0][0].ID != "GHSA-ok" {
		t.Errorf("matches = %+v, want the surviving GHSA-ok record only", matches)
	}
}

func TestMatchBatchFailure(t *testing.T) {
	srv := clienttest.NewMockHTTPServer(t)
	// Nothing registered: the batch endpoint 404s.

	c := &osv.Client{BaseURL: srv.URL}
	matches, err := c.Match(context.Background(), []*osv.Query{
		osv.QueryFor(ecosystem.NPM, "a", "1"),
		osv.QueryFor(ecosystem.NPM, "b", "1"),
	})
	if err == nil {
		t.Error("Match() with failing batch returned nil error, want upstream failure")
	}
	if len(matches) != 2 {
		t.Fatalf("Match() returned %d result sets, want 2", len(matches))
	}
	for i, m := range matches {
		if len(m) != 0 {
			t.Errorf("matches[%d] = %+v, want none after batch failure", i, m)
		}
	}
}

func TestMatchResultCountMismatch(t *testing.T) {
	srv := clienttest.NewMockHTTPServer(t)
	srv.SetResponse(t, "/v1/querybatch", []byte(`{"results": [{}]}`))

	c := &osv.Client{BaseURL: srv.URL}
	_, err := c.Match(context.Background(), []*osv.Query{
		osv.QueryFor(ecosystem.NPM, "a", "1"),
		osv.QueryFor(ecosystem.NPM, "b", "1"),
	})
	if err == nil {
		t.Error("Match() with short batch response returned nil error, want mismatch failure")
	}
}

func TestMatchNoQueries(t *testing.T) {
	c := &osv.Client{BaseURL: "http://localhost:1"}
	matches, err := c.Match(context.Background(), nil)
	if err != nil {
		t.Errorf("Match(nil) returned error: %v", err)
	}
	if len(matches) != 0 {
		t.Errorf("Match(nil) = %+v, want empty", matches)
	}
}

func TestGet(t *testing.T) {
	srv := clienttest.NewMockHTTPServer(t)
	srv.SetResponse(t, "/v1/vulns/OSV-2023-1", []byte(`{
		"id": "OSV-2023-1",
		"summary": "Heap overflow",
		"severity": [{"type": "CVSS_V3", "score": "9.8"}]
	}`))

	c := &osv.Client{BaseURL: srv.URL}
	got, err := c.Get(context.Background(), "OSV-2023-1")
	if err != nil {
		t.Fatalf("Get(OSV-2023-1) returned error: %v", err)
	}
	if got.ID != "OSV-2023-1" || got.Summary != "Heap overflow" {
		t.Errorf("Get(OSV-2023-1) = %+v", got)
	}
}
