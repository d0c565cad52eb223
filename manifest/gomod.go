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
	"strings"

	"golang.org/x/mod/modfile"
)

// parseGoMod reads a go.mod file and returns its require entries with the
// leading "v" stripped from each version. The Go proxy adapter reuses this
// on the .mod payloads it fetches.
func parseGoMod(text string) []Dependency {
	f, err := modfile.ParseLax("go.mod", []byte(text), nil)
	if err != nil {
		return nil
	}
	deps := newDepList()
	for _, req := range f.Require {
		if req.Mod.Path == "" {
			continue
		}
		deps.add(req.Mod.Path, strings.TrimPrefix(req.Mod.Version, "v"))
	}
	return deps.list()
}
