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

// Package server exposes the analyser over HTTP. POST /api/analyse runs a
// full manifest analysis and POST /api/sbom renders a node set as a
// CycloneDX 1.5 document; both answer OPTIONS preflights with an empty 200,
// and every response carries the CORS headers the browser front end needs.
// Errors travel as {"error": message} envelopes.
package server

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/nfroze/bastion"
	"github.com/nfroze/bastion/analysis"
	"github.com/nfroze/bastion/ecosystem"
	"github.com/nfroze/bastion/log"
	"github.com/nfroze/bastion/sbom"
)

// DefaultAllowedOrigin is the browser origin allowed when none is
// configured.
const DefaultAllowedOrigin = "https://bastion.nfroze.co.uk"

// Config parameterises the HTTP surface.
type Config struct {
	// Analyzer serves /api/analyse. Required.
	Analyzer *bastion.Analyzer
	// AllowedOrigin is echoed in Access-Control-Allow-Origin on every
	// response. Empty means DefaultAllowedOrigin.
	AllowedOrigin string
}

// Server carries the handler state. Construct with New and mount Handler.
type Server struct {
	analyzer *bastion.Analyzer
	origin   string
}

// New builds a Server from cfg.
func New(cfg Config) *Server {
	origin := cfg.AllowedOrigin
	if origin == "" {
		origin = DefaultAllowedOrigin
	}
	return &Server{analyzer: cfg.Analyzer, origin: origin}
}

// Handler returns the routed handler: the two API endpoints, the prometheus
// scrape endpoint and a liveness probe.
func (s *Server) Handler() http.Handler {
	r := mux.NewRouter()
	r.Use(instrument)
	r.Use(s.cors)
	r.HandleFunc("/api/analyse", s.handleAnalyse).Methods("POST", "OPTIONS")
	r.HandleFunc("/api/sbom", s.handleSBOM).Methods("POST", "OPTIONS")
	r.Handle("/metrics", promhttp.Handler()).Methods("GET")
	r.HandleFunc("/healthz", handleHealth).Methods("GET")
	return r
}

// ListenAndServe runs the server on addr until the listener fails.
func (s *Server) ListenAndServe(addr string) error {
	log.Infof("bastion listening on %s", addr)
	return http.ListenAndServe(addr, s.Handler())
}

// cors decorates every response with the CORS headers and answers OPTIONS
// preflights with an empty 200 before they reach a handler.
func (s *Server) cors(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := w.Header()
		h.Set("Access-Control-Allow-Origin", s.origin)
		h.Set("Access-Control-Allow-Headers", "Content-Type")
		h.Set("Access-Control-Allow-Methods", "POST,OPTIONS")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

type analyseRequest struct {
	Manifest  string `json:"manifest"`
	Ecosystem string `json:"ecosystem"`
}

func (s *Server) handleAnalyse(w http.ResponseWriter, r *http.Request) {
	var req analyseRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Request body is not valid JSON")
		return
	}
	result, err := s.analyzer.Analyze(r.Context(), req.Manifest, ecosystem.Ecosystem(req.Ecosystem))
	if err != nil {
		if errors.Is(err, bastion.ErrInvalidInput) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		log.Errorf("analysis failed: %v", err)
		writeError(w, http.StatusInternalServerError, fmt.Sprintf("Internal error: %v", err))
		return
	}
	writeJSON(w, http.StatusOK, result)
}

type sbomRequest struct {
	Nodes     []*analysis.Node `json:"nodes"`
	Ecosystem string           `json:"ecosystem"`
	Root      string           `json:"root"`
}

func (s *Server) handleSBOM(w http.ResponseWriter, r *http.Request) {
	var req sbomRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Request body is not valid JSON")
		return
	}
	if len(req.Nodes) == 0 {
		writeError(w, http.StatusBadRequest, "No dependency data provided")
		return
	}
	// Unknown ecosystems are not rejected here: the purl type degrades to
	// "generic", so an SBOM can still be rendered from a saved result.
	eco := ecosystem.Ecosystem(req.Ecosystem)
	if req.Ecosystem == "" {
		eco = ecosystem.NPM
	}
	bom := sbom.ToCDX(req.Nodes, eco, sbom.Config{Root: req.Root})
	var buf bytes.Buffer
	if err := sbom.Encode(&buf, bom); err != nil {
		writeError(w, http.StatusInternalServerError, fmt.Sprintf("SBOM generation failed: %v", err))
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(buf.Bytes()); err != nil {
		log.Errorf("writing SBOM response: %v", err)
	}
}

func handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Errorf("writing response: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
