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
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/nfroze/bastion/advisory/kev"
	"github.com/nfroze/bastion/advisory/osv"
	"github.com/nfroze/bastion/analysis"
	"github.com/nfroze/bastion/graph"
	"github.com/nfroze/bastion/log"
	"github.com/nfroze/bastion/purl"
	"github.com/nfroze/bastion/registry"
	"github.com/nfroze/bastion/risk"
)

var inspectFormat string

var inspectCmd = &cobra.Command{
	Use:   "inspect <purl>",
	Short: "Resolve and score a single package",
	Long: `Inspect fetches one package from its registry, queries the advisory
database and the exploited-vulnerabilities catalog, and prints the scored
result together with the package's immediate dependencies.

The package is named by purl, e.g. pkg:npm/left-pad@1.3.0 or
pkg:maven/org.apache.logging.log4j/log4j-core@2.14.1.`,
	Args: cobra.ExactArgs(1),
	RunE: runInspect,
}

func init() {
	inspectCmd.Flags().StringVar(&inspectFormat, "format", "table", "output format: json or table")
	rootCmd.AddCommand(inspectCmd)
}

func runInspect(cmd *cobra.Command, args []string) error {
	parsed, err := purl.Parse(args[0])
	if err != nil {
		return err
	}
	client, err := registry.New(parsed.Ecosystem, registryConfig())
	if err != nil {
		return err
	}

	// Depth 1: the package itself plus its immediate dependencies.
	resolver := &graph.Resolver{Client: client, Ecosystem: parsed.Ecosystem, MaxDepth: 1}
	g := graph.New()
	resolver.Resolve(cmd.Context(), g, parsed.Name, parsed.Version)
	nodes := g.NodeList()
	if len(nodes) == 0 {
		return fmt.Errorf("package %s did not resolve", args[0])
	}

	queries := make([]*osv.Query, len(nodes))
	for i, n := range nodes {
		queries[i] = osv.QueryFor(parsed.Ecosystem, n.Name, n.Version)
	}
	osvClient := &osv.Client{BaseURL: cfg.Advisory.OSVURL}
	matches, err := osvClient.Match(cmd.Context(), queries)
	if err != nil {
		log.Warnf("advisory lookup incomplete: %v", err)
	}
	kevClient := &kev.Client{FeedURL: cfg.Advisory.KEVFeedURL}
	exploited, err := kevClient.ExploitedCVEs(cmd.Context())
	if err != nil {
		log.Warnf("exploited-vulnerabilities feed unavailable: %v", err)
	}

	scorer := &risk.Scorer{}
	for i, n := range nodes {
		vulns := []analysis.Vulnerability{}
		for _, v := range matches[i] {
			vulns = append(vulns, risk.Convert(v, exploited))
		}
		n.Vulnerabilities = vulns
		scorer.Score(n)
	}

	if inspectFormat == "json" {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(nodes[0])
	}
	return renderInspect(os.Stdout, nodes[0], nodes[1:])
}

func renderInspect(w io.Writer, node *analysis.Node, deps []*analysis.Node) error {
	fmt.Fprintf(w, "%s (%s)\n", node.Key(), node.Ecosystem)
	fmt.Fprintf(w, "Risk: %s (score %d)\n", node.RiskLevel, node.RiskScore)
	if node.Licence.SPDX != "" {
		fmt.Fprintf(w, "Licence: %s (%s risk)\n", node.Licence.SPDX, node.Licence.Risk)
	}
	if node.Maintenance.LastPublished != "" {
		fmt.Fprintf(w, "Last published: %s (release cadence: %s)\n",
			node.Maintenance.LastPublished, node.Maintenance.ReleaseFrequency)
	}
	if node.Maintenance.WeeklyDownloads > 0 {
		fmt.Fprintf(w, "Weekly downloads: %d\n", node.Maintenance.WeeklyDownloads)
	}
	if node.ResolutionError {
		fmt.Fprintf(w, "Resolution failed: the registry did not return this package\n")
	}

	if len(node.Vulnerabilities) > 0 {
		fmt.Fprintf(w, "\nVulnerabilities:\n")
		table := tablewriter.NewWriter(w)
		table.SetHeader([]string{"ID", "Severity", "CVSS", "Fixed in", "KEV"})
		table.SetAutoWrapText(false)
		for _, v := range node.Vulnerabilities {
			kevMark := ""
			if v.CISAKEV {
				kevMark = "yes"
			}
			table.Append([]string{
				v.ID,
				v.Severity,
				strconv.FormatFloat(v.CVSS, 'f', -1, 64),
				v.FixedIn,
				kevMark,
			})
		}
		table.Render()
	}

	if len(deps) > 0 {
		fmt.Fprintf(w, "\nDirect dependencies:\n")
		table := tablewriter.NewWriter(w)
		table.SetHeader([]string{"Package", "Version", "Risk", "Score"})
		table.SetAutoWrapText(false)
		for _, d := range deps {
			table.Append([]string{d.Name, d.Version, string(d.RiskLevel), strconv.Itoa(d.RiskScore)})
		}
		table.Render()
	}
	return nil
}
