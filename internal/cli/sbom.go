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
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/nfroze/bastion/analysis"
	"github.com/nfroze/bastion/ecosystem"
	"github.com/nfroze/bastion/sbom"
)

var (
	sbomInput  string
	sbomRoot   string
	sbomOutput string
)

var sbomCmd = &cobra.Command{
	Use:   "sbom",
	Short: "Render a saved analysis as a CycloneDX 1.5 SBOM",
	Long: `Sbom reads an analysis result previously written by
"bastion analyze --format json" and renders it as a CycloneDX 1.5 document
with embedded VEX records.`,
	RunE: runSBOMCmd,
}

func init() {
	sbomCmd.Flags().StringVarP(&sbomInput, "input", "i", "", "analysis result JSON file (required)")
	sbomCmd.Flags().StringVar(&sbomRoot, "root", "", `root component as "name@version" (default: the analysed root)`)
	sbomCmd.Flags().StringVarP(&sbomOutput, "output", "o", "", "output file (default: stdout)")
	_ = sbomCmd.MarkFlagRequired("input")
	rootCmd.AddCommand(sbomCmd)
}

func runSBOMCmd(cmd *cobra.Command, args []string) error {
	data, err := os.ReadFile(sbomInput)
	if err != nil {
		return fmt.Errorf("reading analysis result: %w", err)
	}
	var result analysis.Result
	if err := json.Unmarshal(data, &result); err != nil {
		return fmt.Errorf("decoding analysis result: %w", err)
	}
	if len(result.Nodes) == 0 {
		return errors.New("analysis result contains no dependencies")
	}

	root := sbomRoot
	if root == "" {
		root = result.Root
	}
	bom := sbom.ToCDX(result.Nodes, ecosystem.Ecosystem(result.Ecosystem), sbom.Config{Root: root})

	out, closeOut, err := openOutput(sbomOutput)
	if err != nil {
		return err
	}
	defer closeOut()
	return sbom.Encode(out, bom)
}
