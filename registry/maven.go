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

package registry

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// mavenClient looks artifacts up through the Maven Central Solr search.
// The search API exposes no dependency information, so Maven graphs stay
// flat: direct dependencies only.
type mavenClient struct {
	getter
	base string
}

func (c *mavenClient) Fetch(ctx context.Context, name, version string) (*Package, error) {
	group, artifact, ok := strings.Cut(name, ":")
	if !ok {
		return nil, fmt.Errorf("maven package name %q is not of the form groupId:artifactId", name)
	}

	doc, err := c.json(ctx, c.base+"/solrsearch/select?q=g:"+group+"+AND+a:"+artifact+"&rows=1")
	if err != nil {
		return nil, err
	}
	hit := doc.Get("response.docs.0")
	if !hit.Exists() {
		return nil, fmt.Errorf("%w: no Maven Central document for %s", errNotFound, name)
	}

	pkg := &Package{Name: name, Version: version}
	if version == "" {
		pkg.Version = hit.Get("latestVersion").String()
		if ts := hit.Get("timestamp").Int(); ts > 0 {
			pkg.Metadata.LastPublished = time.UnixMilli(ts).UTC().Format(time.RFC3339)
		}
	}
	return pkg, nil
}
