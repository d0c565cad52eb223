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

// Package manifest extracts direct dependencies from the five supported
// manifest formats. Parsing is best-effort: entries that cannot be
// understood are skipped silently and the parser returns whatever it could
// extract. An empty result is the caller's signal that the manifest was
// unusable.
package manifest

import (
	"strings"

	"github.com/nfroze/bastion/ecosystem"
)

// Dependency is one direct dependency declared in a manifest: a package
// name and a cleaned, pinned version (empty when unknown).
type Dependency struct {
	Name    string
	Version string
}

// Parse extracts the direct dependencies declared in the given manifest
// text. Declaration order is preserved; a name declared twice keeps its
// first position and its last version, matching JSON-object semantics.
func Parse(eco ecosystem.Ecosystem, text string) []Dependency {
	switch eco {
	case ecosystem.NPM:
		return parseNPM(text)
	case ecosystem.PyPI:
		return parsePyPI(text)
	case ecosystem.Go:
		return parseGoMod(text)
	case ecosystem.Maven:
		return parseMaven(text)
	case ecosystem.Cargo:
		return parseCargo(text)
	}
	return nil
}

// CleanVersion strips the leading run of range operator characters
// (^ ~ > = <) from a version constraint and trims whitespace, pinning the
// constraint to its literal version. Registry adapters must run every
// upstream version string through this same cleaner.
func CleanVersion(s string) string {
	s = strings.TrimSpace(s)
	s = strings.TrimLeft(s, "^~>=<")
	return strings.TrimSpace(s)
}

// depList accumulates dependencies preserving first-seen order while letting
// a repeated name overwrite its version in place.
type depList struct {
	deps  []Dependency
	byKey map[string]int
}

func newDepList() *depList {
	return &depList{byKey: map[string]int{}}
}

func (l *depList) add(name, version string) {
	if i, ok := l.byKey[name]; ok {
		l.deps[i].Version = version
		return
	}
	l.byKey[name] = len(l.deps)
	l.deps = append(l.deps, Dependency{Name: name, Version: version})
}

func (l *depList) list() []Dependency {
	return l.deps
}
