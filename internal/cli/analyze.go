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
	"strings"

	"github.com/jszwec/csvutil"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/nfroze/bastion/analysis"
	"github.com/nfroze/bastion/ecosystem"
)

var (
	analyzeManifest  string
	analyzeEcosystem string
	analyzeFormat    string
	analyzeOutput    string
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze",
	Short: "Analyse the dependencies declared in a manifest",
	Long: `Analyze reads a dependency manifest (package.json,
requirements.txt, go.mod, pom.xml or Cargo.toml), resolves the transitive
graph, scores every package and prints the result.

The one-shot command always analyses fresh; the persistent result cache is
only used by the HTTP service.`,
	RunE: runAnalyze,
}

func init() {
	analyzeCmd.Flags().StringVarP(&analyzeManifest, "manifest", "f", "", "manifest file to analyse (required)")
	analyzeCmd.Flags().StringVarP(&analyzeEcosystem, "ecosystem", "e", "", "manifest ecosystem: npm, pypi, go, maven or cargo (required)")
	analyzeCmd.Flags().StringVar(&analyzeFormat, "format", "json", "output format: json, table or csv")
	analyzeCmd.Flags().StringVarP(&analyzeOutput, "output", "o", "", "output file (default: stdout)")
	_ = analyzeCmd.MarkFlagRequired("manifest")
	_ = analyzeCmd.MarkFlagRequired("ecosystem")
	rootCmd.AddCommand(analyzeCmd)
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	data, err := os.ReadFile(analyzeManifest)
	if err != nil {
		return fmt.Errorf("reading manifest: %w", err)
	}

	result, err := newAnalyzer(nil).Analyze(cmd.Context(), string(data), ecosystem.Ecosystem(analyzeEcosystem))
	if err != nil {
		return err
	}

	out, closeOut, err := openOutput(analyzeOutput)
	if err != nil {
		return err
	}
	defer closeOut()

	switch analyzeFormat {
	case "json":
		return renderJSON(out, result)
	case "table":
		return renderTable(out, result)
	case "csv":
		return renderCSV(out, result)
	}
	return fmt.Errorf("unknown format %q (want json, table or csv)", analyzeFormat)
}

func renderJSON(w io.Writer, result *analysis.Result) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(result)
}

func renderTable(w io.Writer, result *analysis.Result) error {
	fmt.Fprintf(w, "Ecosystem: %s\n", result.Ecosystem)
	fmt.Fprintf(w, "Dependencies: %d total, %d direct, %d transitive\n",
		result.TotalDependencies, result.DirectDependencies, result.TransitiveDependencies)
	s := result.RiskSummary
	fmt.Fprintf(w, "Risk: %d critical, %d high, %d medium, %d low, %d none\n\n",
		s.Critical, s.High, s.Medium, s.Low, s.None)

	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"Package", "Version", "Depth", "Risk", "Score", "Vulns", "Licence"})
	table.SetAutoWrapText(false)
	for _, n := range result.Nodes {
		risk := string(n.RiskLevel)
		if n.ResolutionError {
			risk += " (unresolved)"
		}
		table.Append([]string{
			n.Name,
			n.Version,
			strconv.Itoa(n.Depth),
			risk,
			strconv.Itoa(n.RiskScore),
			strconv.Itoa(len(n.Vulnerabilities)),
			n.Licence.SPDX,
		})
	}
	table.Render()

	if len(result.RiskiestPaths) > 0 {
		fmt.Fprintf(w, "\nRiskiest paths:\n")
		for _, p := range result.RiskiestPaths {
			fmt.Fprintf(w, "  %s (score %d): %s\n", strings.Join(p.Path, " -> "), p.MaxRiskScore, p.Reason)
		}
	}
	return nil
}

// nodeRow is the flattened per-package CSV record.
type nodeRow struct {
	Name            string `csv:"name"`
	Version         string `csv:"version"`
	Depth           int    `csv:"depth"`
	Direct          bool   `csv:"direct"`
	RiskLevel       string `csv:"risk_level"`
	RiskScore       int    `csv:"risk_score"`
	Vulnerabilities int    `csv:"vulnerabilities"`
	Licence         string `csv:"licence"`
	LastPublished   string `csv:"last_published"`
	ResolutionError bool   `csv:"resolution_error"`
}

func renderCSV(w io.Writer, result *analysis.Result) error {
	rows := make([]nodeRow, 0, len(result.Nodes))
	for _, n := range result.Nodes {
		rows = append(rows, nodeRow{
			Name:            n.Name,
			Version:         n.Version,
			Depth:           n.Depth,
			Direct:          n.IsDirect,
			RiskLevel:       string(n.RiskLevel),
			RiskScore:       n.RiskScore,
			Vulnerabilities: len(n.Vulnerabilities),
			Licence:         n.Licence.SPDX,
			LastPublished:   n.Maintenance.LastPublished,
			ResolutionError: n.ResolutionError,
		})
	}
	b, err := csvutil.Marshal(rows)
	if err != nil {
		return fmt.Errorf("encoding CSV: %w", err)
	}
	_, err = w.Write(b)
	return err
}
