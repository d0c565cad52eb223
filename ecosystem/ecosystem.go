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

// Package ecosystem enumerates the package ecosystems Bastion can analyse
// and maps them onto the identifiers used by external systems: the OSV
// advisory database's ecosystem labels and package-url type strings.
package ecosystem

import (
	"fmt"
	"strings"
)

// Ecosystem identifies one of the supported package ecosystems.
type Ecosystem string

// The five ecosystems Bastion understands. The string values double as the
// wire values accepted in API requests and emitted in responses.
const (
	NPM   Ecosystem = "npm"
	PyPI  Ecosystem = "pypi"
	Go    Ecosystem = "go"
	Maven Ecosystem = "maven"
	Cargo Ecosystem = "cargo"
)

// All returns the supported ecosystems in a stable order.
func All() []Ecosystem {
	return []Ecosystem{NPM, PyPI, Go, Maven, Cargo}
}

// Parse converts a request string into an Ecosystem. Matching is
// case-insensitive; anything outside the supported set is an error.
func Parse(s string) (Ecosystem, error) {
	switch Ecosystem(strings.ToLower(strings.TrimSpace(s))) {
	case NPM:
		return NPM, nil
	case PyPI:
		return PyPI, nil
	case Go:
		return Go, nil
	case Maven:
		return Maven, nil
	case Cargo:
		return Cargo, nil
	}
	return "", fmt.Errorf("unsupported ecosystem %q", s)
}

// OSVLabel returns the ecosystem name the OSV advisory database expects in
// batch queries.
func (e Ecosystem) OSVLabel() string {
	switch e {
	case NPM:
		return "npm"
	case PyPI:
		return "PyPI"
	case Go:
		return "Go"
	case Maven:
		return "Maven"
	case Cargo:
		return "crates.io"
	}
	return string(e)
}

// PurlType returns the package-url type component for the ecosystem.
func (e Ecosystem) PurlType() string {
	switch e {
	case NPM:
		return "npm"
	case PyPI:
		return "pypi"
	case Go:
		return "golang"
	case Maven:
		return "maven"
	case Cargo:
		return "cargo"
	}
	return "generic"
}

// FromPurlType is the inverse of PurlType. It reports false for purl types
// outside the supported set.
func FromPurlType(t string) (Ecosystem, bool) {
	switch strings.ToLower(t) {
	case "npm":
		return NPM, true
	case "pypi":
		return PyPI, true
	case "golang":
		return Go, true
	case "maven":
		return Maven, true
	case "cargo":
		return Cargo, true
	}
	return "", false
}

// String implements fmt.Stringer.
func (e Ecosystem) String() string { return string(e) }
