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
	"regexp"
	"strings"

	"bitbucket.org/creachadair/stringset"

	"github.com/nfroze/bastion/analysis"
)

// spdxTable maps raw licence strings to SPDX-ish identifiers by ordered,
// case-insensitive substring match; the first hit wins. The order encodes
// deliberate approximations: any string mentioning BSD collapses to
// BSD-3-Clause, and LGPL-3.0 collapses to GPL-3.0 through the earlier
// GPL-3.0 entry.
var spdxTable = []struct {
	substr string
	id     string
}{
	{"MIT", "MIT"},
	{"ISC", "ISC"},
	{"BSD", "BSD-3-Clause"},
	{"APACHE 2.0", "Apache-2.0"},
	{"APACHE-2.0", "Apache-2.0"},
	{"BSD-2-CLAUSE", "BSD-2-Clause"},
	{"BSD-3-CLAUSE", "BSD-3-Clause"},
	{"GPL-2.0", "GPL-2.0"},
	{"GPL-3.0", "GPL-3.0"},
	{"LGPL-2.1", "LGPL-2.1"},
	{"LGPL-3.0", "LGPL-3.0"},
	{"MPL-2.0", "MPL-2.0"},
	{"UNLICENSE", "Unlicense"},
	{"AGPL-3.0", "AGPL-3.0"},
}

var reLicenceToken = regexp.MustCompile(`^[A-Za-z0-9._-]{1,30}$`)

var permissiveLicences = stringset.New("MIT", "APACHE-2.0", "ISC", "UNLICENSE", "CC0-1.0", "0BSD")

// NormaliseLicence maps a raw registry licence string to an SPDX-ish
// identifier. Unmatched short tokens pass through unchanged; anything else
// is truncated to 30 characters.
func NormaliseLicence(raw string) string {
	if raw == "" {
		return ""
	}
	upper := strings.ToUpper(raw)
	for _, e := range spdxTable {
		if strings.Contains(upper, e.substr) {
			return e.id
		}
	}
	if reLicenceToken.MatchString(raw) {
		return raw
	}
	if len(raw) > 30 {
		raw = raw[:30]
	}
	return raw
}

// ClassifyLicence buckets a normalised licence identifier into a risk level
// and its scoring contribution: permissive licences cost nothing, weak
// copyleft 5, strong copyleft 10, and anything unrecognised 3.
func ClassifyLicence(spdx string) (analysis.LicenceRisk, int) {
	upper := strings.ToUpper(spdx)
	switch {
	case permissiveLicences.Contains(upper), strings.HasPrefix(upper, "BSD"):
		return analysis.LicenceLow, 0
	case strings.HasPrefix(upper, "LGPL"), upper == "MPL-2.0":
		return analysis.LicenceMedium, 5
	case strings.HasPrefix(upper, "GPL"), strings.HasPrefix(upper, "AGPL"):
		return analysis.LicenceHigh, 10
	default:
		return analysis.LicenceUnknown, 3
	}
}
