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

package server_test

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/CycloneDX/cyclonedx-go"

	"github.com/nfroze/bastion"
	"github.com/nfroze/bastion/advisory/kev"
	"github.com/nfroze/bastion/advisory/osv"
	"github.com/nfroze/bastion/analysis"
	"github.com/nfroze/bastion/ecosystem"
	"github.com/nfroze/bastion/internal/clienttest"
	"github.com/nfroze/bastion/registry"
	"github.com/nfroze/bastion/registry/registrytest"
	"github.com/nfroze/bastion/server"
)

const testOrigin = "https://bastion.example.test"

// newTestServer wires a Server whose analyser runs against a fake registry
// and stubbed advisory backends, with a fixed clock so scoring is stable.
func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()

	reg := registrytest.New()
	reg.Set("left-pad", "1.3.0", registrytest.Response{
		Metadata: registry.Metadata{
			Licence:         "MIT",
			FirstPublished:  "2020-01-01T00:00:00Z",
			LastPublished:   "2024-03-01T00:00:00Z",
			WeeklyDownloads: 2000000,
		},
	})

	mock := clienttest.NewMockHTTPServer(t)
	mock.SetResponse(t, "/v1/querybatch", []byte(`{"results":[{}]}`))
	mock.SetResponse(t, "/kev.json", []byte(`{"vulnerabilities":[]}`))

	analyzer := bastion.New(bastion.Config{
		Registry: func(ecosystem.Ecosystem) (registry.Client, error) { return reg, nil },
		OSV:      &osv.Client{BaseURL: mock.URL},
		KEV:      &kev.Client{FeedURL: mock.URL + "/kev.json"},
		Now: func() time.Time {
			return time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
		},
	})
	srv := server.New(server.Config{Analyzer: analyzer, AllowedOrigin: testOrigin})
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return ts
}

func post(t *testing.T, url, body string) *http.Response {
	t.Helper()
	resp, err := http.Post(url, "application/json", strings.NewReader(body))
	if err != nil {
		t.Fatalf("POST %s: %v", url, err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func checkCORS(t *testing.T, h http.Header) {
	t.Helper()
	for header, want := range map[string]string{
		"Access-Control-Allow-Origin":  testOrigin,
		"Access-Control-Allow-Headers": "Content-Type",
		"Access-Control-Allow-Methods": "POST,OPTIONS",
	} {
		if got := h.Get(header); got != want {
			t.Errorf("%s = %q, want %q", header, got, want)
		}
	}
}

func decodeError(t *testing.T, r io.Reader) string {
	t.Helper()
	var envelope struct {
		Error string `json:"error"`
	}
	if err := json.NewDecoder(r).Decode(&envelope); err != nil {
		t.Fatalf("decoding error envelope: %v", err)
	}
	return envelope.Error
}

func TestPreflight(t *testing.T) {
	ts := newTestServer(t)

	for _, path := range []string{"/api/analyse", "/api/sbom"} {
		req, err := http.NewRequest(http.MethodOptions, ts.URL+path, nil)
		if err != nil {
			t.Fatalf("building request: %v", err)
		}
		resp, err := ts.Client().Do(req)
		if err != nil {
			t.Fatalf("OPTIONS %s: %v", path, err)
		}
		body, _ := io.ReadAll(resp.Body)
		resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			t.Errorf("OPTIONS %s status = %d, want %d", path, resp.StatusCode, http.StatusOK)
		}
		if len(body) != 0 {
			t.Errorf("OPTIONS %s body = %q, want empty", path, body)
		}
		checkCORS(t, resp.Header)
	}
}

func TestAnalyse(t *testing.T) {
	ts := newTestServer(t)

	resp := post(t, ts.URL+"/api/analyse", `{"manifest":"{\"dependencies\":{\"left-pad\":\"^1.3.0\"}}","ecosystem":"npm"}`)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want %d", resp.StatusCode, http.StatusOK)
	}
	if got := resp.Header.Get("Content-Type"); got != "application/json" {
		t.Errorf("Content-Type = %q, want %q", got, "application/json")
	}
	checkCORS(t, resp.Header)

	var result analysis.Result
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		t.Fatalf("decoding result: %v", err)
	}
	if result.Ecosystem != "npm" {
		t.Errorf("ecosystem = %q, want %q", result.Ecosystem, "npm")
	}
	if result.Root != analysis.ProjectRoot {
		t.Errorf("root = %q, want %q", result.Root, analysis.ProjectRoot)
	}
	if result.TotalDependencies != 1 || len(result.Nodes) != 1 {
		t.Fatalf("got %d dependencies (%d nodes), want 1", result.TotalDependencies, len(result.Nodes))
	}
	if got := result.Nodes[0].Key(); got != "left-pad@1.3.0" {
		t.Errorf("node key = %q, want %q", got, "left-pad@1.3.0")
	}
}

func TestAnalyseInvalidInput(t *testing.T) {
	ts := newTestServer(t)

	tests := []struct {
		name      string
		body      string
		wantError string
	}{
		{
			name:      "empty manifest",
			body:      `{"manifest":"","ecosystem":"npm"}`,
			wantError: "invalid input: manifest is empty",
		},
		{
			name:      "unsupported ecosystem",
			body:      `{"manifest":"{\"dependencies\":{\"a\":\"1.0.0\"}}","ecosystem":"deb"}`,
			wantError: `invalid input: unsupported ecosystem "deb"`,
		},
		{
			name:      "manifest with no dependencies",
			body:      `{"manifest":"{\"dependencies\":{}}","ecosystem":"npm"}`,
			wantError: "invalid input: no dependencies found in manifest",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := post(t, ts.URL+"/api/analyse", tt.body)
			if resp.StatusCode != http.StatusBadRequest {
				t.Fatalf("status = %d, want %d", resp.StatusCode, http.StatusBadRequest)
			}
			checkCORS(t, resp.Header)
			if got := decodeError(t, resp.Body); got != tt.wantError {
				t.Errorf("error = %q, want %q", got, tt.wantError)
			}
		})
	}
}

func TestAnalyseMalformedBody(t *testing.T) {
	ts := newTestServer(t)

	resp := post(t, ts.URL+"/api/analyse", `{"manifest":`)
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d, want %d", resp.StatusCode, http.StatusBadRequest)
	}
	if got, want := decodeError(t, resp.Body), "Request body is not valid JSON"; got != want {
		t.Errorf("error = %q, want %q", got, want)
	}
}

func TestAnalyseMethodNotAllowed(t *testing.T) {
	ts := newTestServer(t)

	resp, err := http.Get(ts.URL + "/api/analyse")
	if err != nil {
		t.Fatalf("GET /api/analyse: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusMethodNotAllowed {
		t.Errorf("status = %d, want %d", resp.StatusCode, http.StatusMethodNotAllowed)
	}
}

func TestSBOM(t *testing.T) {
	ts := newTestServer(t)

	resp := post(t, ts.URL+"/api/sbom", `{
		"ecosystem": "npm",
		"root": "my-app@1.2.3",
		"nodes": [{
			"name": "left-pad",
			"version": "1.3.0",
			"licence": {"spdx": "MIT", "risk": "low"},
			"dependsOn": [],
			"vulnerabilities": [{
				"id": "GHSA-whgm-jr23-g3j9",
				"summary": "Prototype pollution",
				"severity": "HIGH",
				"cvss": 7.5,
				"fixedIn": "1.3.1",
				"cisaKev": false
			}]
		}]
	}`)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want %d", resp.StatusCode, http.StatusOK)
	}
	if got := resp.Header.Get("Content-Type"); got != "application/json" {
		t.Errorf("Content-Type = %q, want %q", got, "application/json")
	}
	checkCORS(t, resp.Header)

	var bom cyclonedx.BOM
	if err := cyclonedx.NewBOMDecoder(resp.Body, cyclonedx.BOMFileFormatJSON).Decode(&bom); err != nil {
		t.Fatalf("decoding SBOM: %v", err)
	}
	if bom.SpecVersion != cyclonedx.SpecVersion1_5 {
		t.Errorf("specVersion = %v, want %v", bom.SpecVersion, cyclonedx.SpecVersion1_5)
	}
	if bom.Metadata == nil || bom.Metadata.Component == nil {
		t.Fatal("SBOM has no metadata component")
	}
	if got := bom.Metadata.Component.Name; got != "my-app" {
		t.Errorf("root component name = %q, want %q", got, "my-app")
	}
	if got := bom.Metadata.Component.Version; got != "1.2.3" {
		t.Errorf("root component version = %q, want %q", got, "1.2.3")
	}
	if bom.Components == nil || len(*bom.Components) != 1 {
		t.Fatalf("got %d components, want 1", len(*bom.Components))
	}
	if got, want := (*bom.Components)[0].PackageURL, "pkg:npm/left-pad@1.3.0"; got != want {
		t.Errorf("component purl = %q, want %q", got, want)
	}
	if bom.Vulnerabilities == nil || len(*bom.Vulnerabilities) != 1 {
		t.Fatalf("SBOM carries no vulnerabilities")
	}
	vuln := (*bom.Vulnerabilities)[0]
	if vuln.ID != "GHSA-whgm-jr23-g3j9" {
		t.Errorf("vulnerability id = %q, want %q", vuln.ID, "GHSA-whgm-jr23-g3j9")
	}
	if got, want := vuln.Recommendation, "Upgrade to 1.3.1"; got != want {
		t.Errorf("recommendation = %q, want %q", got, want)
	}
	if vuln.Analysis == nil || vuln.Analysis.State != cyclonedx.IASInTriage {
		t.Errorf("analysis state = %+v, want %q", vuln.Analysis, cyclonedx.IASInTriage)
	}
}

func TestSBOMNoNodes(t *testing.T) {
	ts := newTestServer(t)

	for _, body := range []string{`{"nodes":[],"ecosystem":"npm"}`, `{}`} {
		resp := post(t, ts.URL+"/api/sbom", body)
		if resp.StatusCode != http.StatusBadRequest {
			t.Fatalf("status = %d, want %d", resp.StatusCode, http.StatusBadRequest)
		}
		checkCORS(t, resp.Header)
		if got, want := decodeError(t, resp.Body), "No dependency data provided"; got != want {
			t.Errorf("error = %q, want %q", got, want)
		}
	}
}

func TestSBOMUnknownEcosystem(t *testing.T) {
	ts := newTestServer(t)

	resp := post(t, ts.URL+"/api/sbom", `{"ecosystem":"conda","nodes":[{"name":"tool","version":"1.0.0","dependsOn":[]}]}`)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want %d", resp.StatusCode, http.StatusOK)
	}
	var bom cyclonedx.BOM
	if err := cyclonedx.NewBOMDecoder(resp.Body, cyclonedx.BOMFileFormatJSON).Decode(&bom); err != nil {
		t.Fatalf("decoding SBOM: %v", err)
	}
	if bom.Components == nil || len(*bom.Components) != 1 {
		t.Fatal("SBOM has no components")
	}
	if got, want := (*bom.Components)[0].PackageURL, "pkg:generic/tool@1.0.0"; got != want {
		t.Errorf("component purl = %q, want %q", got, want)
	}
}

func TestHealthz(t *testing.T) {
	ts := newTestServer(t)

	resp, err := http.Get(ts.URL + "/healthz")
	if err != nil {
		t.Fatalf("GET /healthz: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d, want %d", resp.StatusCode, http.StatusOK)
	}
	checkCORS(t, resp.Header)
	var status struct {
		Status string `json:"status"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&status); err != nil {
		t.Fatalf("decoding health response: %v", err)
	}
	if status.Status != "ok" {
		t.Errorf("status = %q, want %q", status.Status, "ok")
	}
}

func TestMetrics(t *testing.T) {
	ts := newTestServer(t)

	if _, err := http.Get(ts.URL + "/healthz"); err != nil {
		t.Fatalf("GET /healthz: %v", err)
	}
	resp, err := http.Get(ts.URL + "/metrics")
	if err != nil {
		t.Fatalf("GET /metrics: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want %d", resp.StatusCode, http.StatusOK)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("reading metrics: %v", err)
	}
	if !strings.Contains(string(body), "bastion_http_requests_total") {
		t.Error("metrics output missing bastion_http_requests_total")
	}
}
