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

package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/nfroze/bastion/cache"
	"github.com/nfroze/bastion/server"
)

var serveAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the analysis HTTP service",
	Long: `Serve exposes the analyser over HTTP: POST /api/analyse and
POST /api/sbom, plus /metrics and /healthz. Finished analyses are cached in
the configured bolt database for 24 hours.`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "listen address (default: from config)")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	store, err := cache.Open(cfg.Cache.Path, cache.Options{Table: cfg.Cache.Table})
	if err != nil {
		return fmt.Errorf("opening result cache: %w", err)
	}
	defer store.Close()

	addr := serveAddr
	if addr == "" {
		addr = cfg.Server.Addr
	}
	srv := server.New(server.Config{
		Analyzer:      newAnalyzer(store),
		AllowedOrigin: cfg.Server.AllowedOrigin,
	})
	return srv.ListenAndServe(addr)
}
