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

// Package purl builds and parses package-url strings for analysed packages.
//
// Construction is plain string formatting so that the emitted purls match
// the analyser's SBOM output byte for byte: scoped npm names keep their "@"
// and "/" and Go module paths keep their slashes, where a strict purl
// encoder would percent-escape them. Parsing accepts strictly encoded purls
// via the package-url reference implementation.
package purl

import (
	"fmt"
	"strings"

	"github.com/package-url/packageurl-go"

	"github.com/nfroze/bastion/ecosystem"
)

// String returns the purl for a package in the given ecosystem. Maven names
// of the form "groupId:artifactId" split into the purl namespace and name;
// every other ecosystem uses the name unchanged.
func String(eco ecosystem.Ecosystem, name, version string) string {
	t := eco.PurlType()
	if eco == ecosystem.Maven {
		if group, artifact, ok := strings.Cut(name, ":"); ok {
			return fmt.Sprintf("pkg:%s/%s/%s@%s", t, group, artifact, version)
		}
	}
	return fmt.Sprintf("pkg:%s/%s@%s", t, name, version)
}

// Parsed is the ecosystem-level identity extracted from a purl.
type Parsed struct {
	Ecosystem ecosystem.Ecosystem
	Name      string
	Version   string
}

// Parse decodes a purl string into a Parsed identity. The purl type must
// map onto one of the supported ecosystems. Maven purls are rebuilt as
// "groupId:artifactId"; namespaced npm and Go purls are rejoined with "/".
func Parse(s string) (Parsed, error) {
	p, err := packageurl.FromString(s)
	if err != nil {
		return Parsed{}, fmt.Errorf("invalid purl %q: %w", s, err)
	}
	eco, ok := ecosystem.FromPurlType(p.Type)
	if !ok {
		return Parsed{}, fmt.Errorf("unsupported purl type %q", p.Type)
	}
	name := p.Name
	if p.Namespace != "" {
		if eco == ecosystem.Maven {
			name = p.Namespace + ":" + p.Name
		} else {
			name = p.Namespace + "/" + p.Name
		}
	}
	return Parsed{Ecosystem: eco, Name: name, Version: p.Version}, nil
}
