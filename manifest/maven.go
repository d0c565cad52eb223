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
	"regexp"
	"strings"
)

var (
	reMavenDependency = regexp.MustCompile(`(?s)<dependency>(.*?)</dependency>`)
	reMavenGroupID    = regexp.MustCompile(`<groupId>\s*([^<]+?)\s*</groupId>`)
	reMavenArtifactID = regexp.MustCompile(`<artifactId>\s*([^<]+?)\s*</artifactId>`)
	reMavenVersion    = regexp.MustCompile(`<version>\s*([^<]+?)\s*</version>`)
)

// parseMaven extracts <dependency> blocks from a pom.xml document. Each
// block needs a groupId and an artifactId; the version is optional. The
// dependency name is "groupId:artifactId". Blocks are matched with regular
// expressions rather than an XML decoder so that malformed or fragmentary
// documents still yield whatever entries they contain.
func parseMaven(text string) []Dependency {
	deps := newDepList()
	for _, block := range reMavenDependency.FindAllStringSubmatch(text, -1) {
		group := firstSubmatch(reMavenGroupID, block[1])
		artifact := firstSubmatch(reMavenArtifactID, block[1])
		if group == "" || artifact == "" {
			continue
		}
		version := firstSubmatch(reMavenVersion, block[1])
		deps.add(group+":"+artifact, strings.TrimSpace(version))
	}
	return deps.list()
}

func firstSubmatch(re *regexp.Regexp, s string) string {
	m := re.FindStringSubmatch(s)
	if m == nil {
		return ""
	}
	return m[1]
}
