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

// Package risk scores resolved packages. Each package's score in [0, 100]
// sums six independent signals — known vulnerabilities, active exploitation,
// package age, staleness, popularity and licence exposure — and maps onto a
// discrete risk level.
package risk

import (
	"time"

	"github.com/nfroze/bastion/analysis"
)

const day = 24 * time.Hour

// Scorer assigns risk scores, risk levels and release-frequency buckets to
// package nodes. Scoring is deterministic given the node and the reference
// time.
type Scorer struct {
	// Now supplies the reference time for age and staleness signals.
	// Defaults to time.Now.
	Now func() time.Time
}

// Score computes the node's risk fields in place. The node's vulnerability
// list and registry metadata must already be attached; its raw licence
// string is normalised as a side effect.
func (s *Scorer) Score(n *analysis.Node) {
	now := time.Now()
	if s.Now != nil {
		now = s.Now()
	}

	score := vulnerabilityPoints(n.Vulnerabilities)
	exploited := anyExploited(n.Vulnerabilities)
	if exploited {
		score += 25
	}
	score += agePoints(now, n.Maintenance.FirstPublished)
	score += stalenessPoints(now, n.Maintenance.LastPublished)
	score += popularityPoints(n.Maintenance.WeeklyDownloads)

	n.Licence.SPDX = NormaliseLicence(n.Licence.SPDX)
	licenceRisk, licencePoints := ClassifyLicence(n.Licence.SPDX)
	n.Licence.Risk = licenceRisk
	score += licencePoints

	if score > 100 {
		score = 100
	}
	if score < 0 {
		score = 0
	}
	n.RiskScore = score
	n.RiskLevel = level(n, score, exploited)
	n.Maintenance.ReleaseFrequency = releaseFrequency(now, n.Maintenance.FirstPublished, n.Maintenance.LastPublished)
}

// severityPoints weights a severity label. Labels outside the standard five
// count as UNKNOWN.
func severityPoints(severity string) int {
	switch severity {
	case "CRITICAL":
		return 40
	case "HIGH":
		return 30
	case "MEDIUM":
		return 15
	case "LOW":
		return 5
	default:
		return 10
	}
}

// vulnerabilityPoints is the capped vulnerability bucket: the worst
// severity's weight plus 2 per advisory, at most 40.
func vulnerabilityPoints(vulns []analysis.Vulnerability) int {
	if len(vulns) == 0 {
		return 0
	}
	maxSeverity := 0
	for _, v := range vulns {
		if p := severityPoints(v.Severity); p > maxSeverity {
			maxSeverity = p
		}
	}
	return min(40, maxSeverity+2*len(vulns))
}

func anyExploited(vulns []analysis.Vulnerability) bool {
	for _, v := range vulns {
		if v.CISAKEV {
			return true
		}
	}
	return false
}

func agePoints(now time.Time, firstPublished string) int {
	first, ok := parseTime(firstPublished)
	if !ok {
		return 0
	}
	age := now.Sub(first)
	switch {
	case age < 90*day:
		return 10
	case age < 365*day:
		return 5
	default:
		return 0
	}
}

func stalenessPoints(now time.Time, lastPublished string) int {
	last, ok := parseTime(lastPublished)
	if !ok {
		return 0
	}
	idle := now.Sub(last)
	switch {
	case idle > 730*day:
		return 10
	case idle > 365*day:
		return 5
	default:
		return 0
	}
}

func popularityPoints(weeklyDownloads int) int {
	switch {
	case weeklyDownloads == 0:
		return 5
	case weeklyDownloads < 1000:
		return 3
	default:
		return 0
	}
}

func level(n *analysis.Node, score int, exploited bool) analysis.RiskLevel {
	if n.ResolutionError {
		return analysis.RiskUnknown
	}
	switch {
	case exploited, score >= 70:
		return analysis.RiskCritical
	case score >= 50:
		return analysis.RiskHigh
	case score >= 30:
		return analysis.RiskMedium
	case score >= 10, len(n.Vulnerabilities) > 0:
		return analysis.RiskLow
	default:
		return analysis.RiskNone
	}
}

func releaseFrequency(now time.Time, firstPublished, lastPublished string) analysis.ReleaseFrequency {
	first, okFirst := parseTime(firstPublished)
	last, okLast := parseTime(lastPublished)
	if !okFirst || !okLast {
		return analysis.ReleaseUnknown
	}
	span := last.Sub(first)
	switch {
	case span < 30*day:
		return analysis.ReleaseNew
	case span < 365*day:
		return analysis.ReleaseActive
	case now.Sub(last) > 365*day:
		return analysis.ReleaseLow
	default:
		return analysis.ReleaseModerate
	}
}

// parseTime accepts the publication stamp formats the registries emit:
// RFC 3339 with or without sub-second precision, the PyPI zone-less form,
// and bare dates. All are interpreted as UTC.
func parseTime(s string) (time.Time, bool) {
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range []string{time.RFC3339Nano, "2006-01-02T15:04:05", "2006-01-02"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), true
		}
	}
	return time.Time{}, false
}
