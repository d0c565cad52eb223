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

// Package config loads the analyser's configuration from a YAML file.
package config

import (
	"errors"
	"io/fs"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

const defaultConfigFile = ".bastion.yml"

// Config is the top-level Bastion configuration.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Cache    CacheConfig    `yaml:"cache"`
	Analysis AnalysisConfig `yaml:"analysis"`
	Registry RegistryConfig `yaml:"registry"`
	Advisory AdvisoryConfig `yaml:"advisory"`
}

// ServerConfig holds the HTTP listener settings.
type ServerConfig struct {
	Addr string `yaml:"addr"` // listen address (default: :8080)

	// AllowedOrigin is the origin echoed in CORS headers on every
	// response.
	AllowedOrigin string `yaml:"allowed_origin"`
}

// CacheConfig holds the result cache settings.
type CacheConfig struct {
	Path  string `yaml:"path"`  // bolt database file (default: bastion.db)
	Table string `yaml:"table"` // bucket name (default: analyses)
}

// AnalysisConfig bounds one analysis run.
type AnalysisConfig struct {
	TimeoutSeconds int `yaml:"timeout_seconds"` // wall-clock budget (default: 50)
	MaxDepth       int `yaml:"max_depth"`       // transitive resolution depth (default: 5)
}

// Timeout returns the analysis budget as a duration.
func (c AnalysisConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// RegistryConfig overrides package registry endpoints, mainly for tests and
// air-gapped mirrors. Empty fields keep the public endpoints.
type RegistryConfig struct {
	NPMURL          string `yaml:"npm_url"`
	NPMDownloadsURL string `yaml:"npm_downloads_url"`
	PyPIURL         string `yaml:"pypi_url"`
	GoProxyURL      string `yaml:"goproxy_url"`
	CratesURL       string `yaml:"crates_url"`
	MavenSearchURL  string `yaml:"maven_search_url"`
}

// AdvisoryConfig overrides the advisory data sources. Empty fields keep the
// public endpoints.
type AdvisoryConfig struct {
	OSVURL     string `yaml:"osv_url"`
	KEVFeedURL string `yaml:"kev_feed_url"`
}

// Load reads configuration from a YAML file. If path is empty, it tries the
// default file. Returns defaults if the file doesn't exist.
func Load(path string) (*Config, error) {
	if path == "" {
		path = defaultConfigFile
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return defaults(), nil
		}
		return nil, err
	}

	cfg := defaults()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func defaults() *Config {
	return &Config{
		Server: ServerConfig{
			Addr:          ":8080",
			AllowedOrigin: "https://bastion.nfroze.co.uk",
		},
		Cache: CacheConfig{
			Path:  "bastion.db",
			Table: "analyses",
		},
		Analysis: AnalysisConfig{
			TimeoutSeconds: 50,
			MaxDepth:       5,
		},
	}
}
