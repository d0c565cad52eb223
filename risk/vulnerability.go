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

package risk

import (
	"strconv"
	"strings"

	"bitbucket.org/creachadair/stringset"

	"github.com/nfroze/bastion/advisory/osv"
	"github.com/nfroze/bastion/analysis"
)

const maxSummaryLength = 300

// Convert reduces an OSV record to the vulnerability shape attached to
// package nodes, marking it exploited when any of its CVE aliases appears
// in the exploited-CVE set.
func Convert(v *osv.Vulnerability, exploited stringset.Set) analysis.Vulnerability {
	cvss := cvssScore(v.Severity)
	summary := v.Summary
	if len(summary) > maxSummaryLength {
		summary = summary[:maxSummaryLength]
	}
	return analysis.Vulnerability{
		ID:       v.ID,
		Summary:  summary,
		Severity: severityLabel(v, cvss),
		CVSS:     cvss,
		FixedIn:  lastFixed(v.Affected),
		CISAKEV:  isExploited(v, exploited),
	}
}

// cvssScore extracts a numeric score from the record's severity entries:
// the first "/"-separated segment of a CVSS entry's score string that
// parses as a decimal number. Pure vector strings yield 0.
func cvssScore(entries []osv.Severity) float64 {
	for _, s := range entries {
		if !strings.Contains(strings.ToUpper(s.Type), "CVSS") {
			continue
		}
		for _, segment := range strings.Split(s.Score, "/") {
			if f, err := strconv.ParseFloat(segment, 64); err == nil {
				return f
			}
		}
	}
	return 0
}

// severityLabel prefers the database-specific severity, uppercased; absent
// that, the numeric score is bucketed.
func severityLabel(v *osv.Vulnerability, cvss float64) string {
	if s, ok := v.DatabaseSpecific["severity"].(string); ok && s != "" {
		return strings.ToUpper(s)
	}
	switch {
	case cvss >= 9.0:
		return "CRITICAL"
	case cvss >= 7.0:
		return "HIGH"
	case cvss >= 4.0:
		return "MEDIUM"
	case cvss > 0:
		return "LOW"
	default:
		return "UNKNOWN"
	}
}

// lastFixed returns the last "fixed" event across all affected ranges.
// This is not necessarily the minimum fixed version, just the last one
// the record mentions.
func lastFixed(affected []osv.Affected) string {
	fixed := ""
	for _, a := range affected {
		for _, r := range a.Ranges {
			for _, e := range r.Events {
				if e.Fixed != "" {
					fixed = e.Fixed
				}
			}
		}
	}
	return fixed
}

func isExploited(v *osv.Vulnerability, exploited stringset.Set) bool {
	for _, alias := range v.Aliases {
		if strings.HasPrefix(alias, "CVE-") && exploited.Contains(alias) {
			return true
		}
	}
	return false
}
