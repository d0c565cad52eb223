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

package manifest

import (
	"bufio"
	"regexp"
	"strings"
)

// reRequirement captures the project name at the start of a requirements
// line; everything after it is the version specifier.
var reRequirement = regexp.MustCompile(`^([A-Za-z0-9._-]+)\s*(.*)$`)

// parsePyPI reads a requirements.txt document line by line. Blank lines,
// comments and pip options are ignored.
func parsePyPI(text string) []Dependency {
	deps := newDepList()
	scanner := bufio.NewScanner(strings.NewReader(text))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") || strings.HasPrefix(line, "-") {
			continue
		}
		name, version := ParseRequirement(line)
		if name == "" {
			continue
		}
		deps.add(name, version)
	}
	return deps.list()
}

// ParseRequirement splits one Python requirement string into a normalised
// project name and a pinned version. Names are lowercased with underscores
// replaced by hyphens. The version is the first comma- or semicolon-
// delimited token of the specifier, with surrounding parentheses and leading
// comparator characters stripped; it is empty when the requirement carries
// no specifier. The PyPI registry adapter reuses this on requires_dist
// entries.
func ParseRequirement(line string) (name, version string) {
	m := reRequirement.FindStringSubmatch(strings.TrimSpace(line))
	if m == nil {
		return "", ""
	}
	name = strings.ToLower(strings.ReplaceAll(m[1], "_", "-"))
	specifier := strings.TrimSpace(m[2])
	if specifier == "" {
		return name, ""
	}
	if i := strings.IndexAny(specifier, ",;"); i >= 0 {
		specifier = specifier[:i]
	}
	version = strings.TrimLeft(strings.TrimSpace(specifier), "=<>!~^( ")
	version = strings.TrimRight(version, ") ")
	return name, strings.TrimSpace(version)
}
