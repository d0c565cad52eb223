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

	"github.com/nfroze/bastion/manifest"
)

// cratesClient fetches crate summaries and dependency listings from the
// crates.io API.
type cratesClient struct {
	getter
	base string
}

func (c *cratesClient) Fetch(ctx context.Context, name, version string) (*Package, error) {
	doc, err := c.json(ctx, c.base+"/crates/"+name)
	if err != nil {
		return nil, err
	}

	crate := doc.Get("crate")
	fetchVersion := version
	if fetchVersion == "" {
		fetchVersion = manifest.CleanVersion(crate.Get("newest_version").String())
	}

	pkg := &Package{
		Name:    name,
		Version: fetchVersion,
		Metadata: Metadata{
			Licence:         doc.Get("versions.0.license").String(),
			FirstPublished:  crate.Get("created_at").String(),
			LastPublished:   crate.Get("updated_at").String(),
			WeeklyDownloads: int(crate.Get("recent_downloads").Int()),
		},
	}

	// The dependency listing is a separate endpoint; "normal" excludes dev
	// and build dependencies. Failure leaves the crate dependency-less.
	if deps, err := c.json(ctx, c.base+"/crates/"+name+"/"+fetchVersion+"/dependencies"); err == nil {
		for _, d := range deps.Get("dependencies").Array() {
			if d.Get("kind").String() != "normal" {
				continue
			}
			pkg.Dependencies = append(pkg.Dependencies, manifest.Dependency{
				Name:    d.Get("crate_id").String(),
				Version: manifest.CleanVersion(d.Get("req").String()),
			})
		}
	}

	return pkg, nil
}
