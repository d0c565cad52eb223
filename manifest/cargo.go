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

import "github.com/BurntSushi/toml"

type cargoDependency struct {
	Version string
}

// UnmarshalTOML parses a dependency value from a Cargo.toml file.
//
// Dependencies in Cargo.toml can be written as plain version strings or as
// inline tables carrying a version key among others.
func (v *cargoDependency) UnmarshalTOML(data any) error {
	switch data := data.(type) {
	case string:
		v.Version = data
	case map[string]any:
		if version, ok := data["version"].(string); ok {
			v.Version = version
		}
		// Path and git dependencies carry no version; leave it empty.
	}
	return nil
}

type cargoManifest struct {
	Dependencies    map[string]cargoDependency `toml:"dependencies"`
	DevDependencies map[string]cargoDependency `toml:"dev-dependencies"`
}

// parseCargo reads a Cargo.toml document, merging [dependencies] and
// [dev-dependencies]. Declaration order comes from the decoder's key list,
// which reports keys in file order; the decoded maps alone would lose it.
func parseCargo(text string) []Dependency {
	var doc cargoManifest
	md, err := toml.Decode(text, &doc)
	if err != nil {
		return nil
	}
	deps := newDepList()
	for _, key := range md.Keys() {
		if len(key) != 2 {
			continue
		}
		var value cargoDependency
		switch key[0] {
		case "dependencies":
			value = doc.Dependencies[key[1]]
		case "dev-dependencies":
			value = doc.DevDependencies[key[1]]
		default:
			continue
		}
		deps.add(key[1], CleanVersion(value.Version))
	}
	return deps.list()
}
