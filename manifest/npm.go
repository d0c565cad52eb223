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

import "github.com/tidwall/gjson"

// parseNPM reads a package.json document and merges its dependencies and
// devDependencies objects. gjson iterates object members in document order,
// which keeps the declaration order stable in the output.
func parseNPM(text string) []Dependency {
	doc := gjson.Parse(text)
	deps := newDepList()
	for _, section := range []string{"dependencies", "devDependencies"} {
		doc.Get(section).ForEach(func(key, value gjson.Result) bool {
			name := key.String()
			if name == "" {
				return true
			}
			deps.add(name, CleanVersion(value.String()))
			return true
		})
	}
	return deps.list()
}
