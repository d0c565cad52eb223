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

// Package cli implements the bastion command line: a one-shot analyser, the
// HTTP service, SBOM rendering and single-package inspection.
package cli

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/nfroze/bastion"
	"github.com/nfroze/bastion/advisory/kev"
	"github.com/nfroze/bastion/advisory/osv"
	"github.com/nfroze/bastion/config"
	"github.com/nfroze/bastion/ecosystem"
	"github.com/nfroze/bastion/log"
	"github.com/nfroze/bastion/registry"
)

var (
	cfgFile string
	verbose bool
	cfg     *config.Config
)

var rootCmd = &cobra.Command{
	Use:   "bastion",
	Short: "Dependency risk analyser",
	Long: `Bastion analyses the declared dependencies of a manifest: it resolves
the transitive graph against the public registries, cross-references the OSV
advisory database and the CISA Known Exploited Vulnerabilities catalog,
scores every package, and renders the result as JSON, a table, CSV or a
CycloneDX SBOM.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		log.SetLogger(&log.DefaultLogger{Verbose: verbose})
		// The version command works without a config file.
		if cmd.Name() == "version" {
			return nil
		}
		var err error
		cfg, err = config.Load(cfgFile)
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}
		return nil
	},
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: .bastion.yml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
}

// Execute runs the root command.
func Execute() error {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return err
	}
	return nil
}

// registryConfig maps the loaded file config onto the registry adapters.
func registryConfig() registry.Config {
	return registry.Config{
		NPMRegistryURL:  cfg.Registry.NPMURL,
		NPMDownloadsURL: cfg.Registry.NPMDownloadsURL,
		PyPIURL:         cfg.Registry.PyPIURL,
		GoProxyURL:      cfg.Registry.GoProxyURL,
		CratesURL:       cfg.Registry.CratesURL,
		MavenSearchURL:  cfg.Registry.MavenSearchURL,
	}
}

// newAnalyzer builds an analyser from the loaded config. store may be nil
// for one-shot commands that should not touch the persistent cache.
func newAnalyzer(store bastion.ResultCache) *bastion.Analyzer {
	return bastion.New(bastion.Config{
		Registry: func(eco ecosystem.Ecosystem) (registry.Client, error) {
			return registry.New(eco, registryConfig())
		},
		OSV:      &osv.Client{BaseURL: cfg.Advisory.OSVURL},
		KEV:      &kev.Client{FeedURL: cfg.Advisory.KEVFeedURL},
		Cache:    store,
		Timeout:  cfg.Analysis.Timeout(),
		MaxDepth: cfg.Analysis.MaxDepth,
	})
}

// openOutput returns the writer a command should render to: the named file,
// or stdout when path is empty.
func openOutput(path string) (io.Writer, func() error, error) {
	if path == "" {
		return os.Stdout, func() error { return nil }, nil
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, nil, fmt.Errorf("creating %s: %w", path, err)
	}
	return f, f.Close, nil
}
