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
	"sort"
	"strings"

	"github.com/nfroze/bastion/manifest"
)

// pypiClient fetches project documents from the PyPI JSON API.
type pypiClient struct {
	getter
	base string
}

func (c *pypiClient) Fetch(ctx context.Context, name, version string) (*Package, error) {
	url := c.base + "/pypi/" + name + "/json"
	if version != "" {
		url = c.base + "/pypi/" + name + "/" + version + "/json"
	}
	doc, err := c.json(ctx, url)
	if err != nil {
		return nil, err
	}

	pkg := &Package{
		Name:    name,
		Version: doc.Get("info.version").String(),
		Metadata: Metadata{
			Licence: doc.Get("info.license").String(),
		},
	}

	// requires_dist lists runtime requirement strings; entries guarded by
	// an extra marker belong to optional features and are skipped.
	for _, req := range doc.Get("info.requires_dist").Array() {
		line := req.String()
		if strings.Contains(line, "extra ==") {
			continue
		}
		depName, depVersion := manifest.ParseRequirement(line)
		if depName == "" {
			continue
		}
		pkg.Dependencies = append(pkg.Dependencies, manifest.Dependency{Name: depName, Version: depVersion})
	}

	// First and last publication are inferred from the releases map: keys
	// sorted lexicographically, reading the upload time of the earliest and
	// latest release that actually shipped files.
	releases := doc.Get("releases").Map()
	keys := make([]string, 0, len(releases))
	for k := range releases {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if files := releases[k].Array(); len(files) > 0 {
			pkg.Metadata.FirstPublished = files[0].Get("upload_time").String()
			break
		}
	}
	for i := len(keys) - 1; i >= 0; i-- {
		if files := releases[keys[i]].Array(); len(files) > 0 {
			pkg.Metadata.LastPublished = files[0].Get("upload_time").String()
			break
		}
	}

	return pkg, nil
}
