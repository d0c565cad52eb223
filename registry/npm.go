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
	"errors"

	"github.com/tidwall/gjson"

	"github.com/nfroze/bastion/manifest"
)

// npmClient fetches package version documents from an npm registry plus
// weekly download counts from the npm downloads API.
type npmClient struct {
	getter
	registry  string
	downloads string
}

func (c *npmClient) Fetch(ctx context.Context, name, version string) (*Package, error) {
	doc, err := c.versionDoc(ctx, name, version)
	if err != nil {
		return nil, err
	}

	pkg := &Package{
		Name:    name,
		Version: doc.Get("version").String(),
		Metadata: Metadata{
			Licence: licenceString(doc.Get("license")),
		},
	}
	doc.Get("dependencies").ForEach(func(key, value gjson.Result) bool {
		pkg.Dependencies = append(pkg.Dependencies, manifest.Dependency{
			Name:    key.String(),
			Version: manifest.CleanVersion(value.String()),
		})
		return true
	})

	// Publication times live on the full package document, download counts
	// on a separate API. Both are best-effort.
	if full, err := c.json(ctx, c.registry+"/"+name); err == nil {
		pkg.Metadata.FirstPublished = full.Get("time.created").String()
		pkg.Metadata.LastPublished = full.Get("time.modified").String()
	}
	if dl, err := c.json(ctx, c.downloads+"/downloads/point/last-week/"+name); err == nil {
		pkg.Metadata.WeeklyDownloads = int(dl.Get("downloads").Int())
	}

	return pkg, nil
}

// versionDoc fetches the registry document for one version of a package.
// An empty version resolves the "latest" dist-tag, as does a version the
// registry does not know.
func (c *npmClient) versionDoc(ctx context.Context, name, version string) (gjson.Result, error) {
	if version == "" {
		return c.json(ctx, c.registry+"/"+name+"/latest")
	}
	doc, err := c.json(ctx, c.registry+"/"+name+"/"+version)
	if errors.Is(err, errNotFound) {
		return c.json(ctx, c.registry+"/"+name+"/latest")
	}
	return doc, err
}
