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
	"strings"

	"github.com/nfroze/bastion/ecosystem"
	"github.com/nfroze/bastion/manifest"
)

// goProxyClient fetches module metadata from a Go module proxy. The proxy
// exposes no licence field, so the licence is approximated as BSD-3-Clause;
// callers should not rely on Go licence accuracy.
type goProxyClient struct {
	getter
	base string
}

func (c *goProxyClient) Fetch(ctx context.Context, name, version string) (*Package, error) {
	pkg := &Package{
		Name:     name,
		Version:  version,
		Metadata: Metadata{Licence: "BSD-3-Clause"},
	}

	if version == "" {
		info, err := c.json(ctx, c.base+"/"+name+"/@latest")
		if err != nil {
			return nil, err
		}
		pkg.Version = strings.TrimPrefix(info.Get("Version").String(), "v")
		pkg.Metadata.LastPublished = info.Get("Time").String()
		return pkg, nil
	}

	mod, err := c.get(ctx, c.base+"/"+name+"/@v/v"+version+".mod")
	if err != nil {
		return nil, err
	}
	pkg.Dependencies = manifest.Parse(ecosystem.Go, string(mod))
	return pkg, nil
}
