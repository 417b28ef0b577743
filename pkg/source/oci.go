/*
Copyright 2021 Stefan Prodan

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package source

import (
	"context"
	"fmt"

	"filippo.io/age"
	ctrllog "sigs.k8s.io/controller-runtime/pkg/log"

	"github.com/razee-io/razeedeploy-delta/pkg/components"
	"github.com/razee-io/razeedeploy-delta/pkg/registry"
)

// OCISource pulls manifests from <repository>/<component>:<version> artifacts.
type OCISource struct {
	repository string
	identities []age.Identity
}

// Fetch pulls the component artifact, resolving latest to the
// highest semver tag of the component repository.
func (s *OCISource) Fetch(ctx context.Context, component components.Component, version string) ([]byte, error) {
	log := ctrllog.FromContext(ctx).WithValues("component", component.Name)

	if isLatest(version) {
		repo := fmt.Sprintf("%s/%s", s.repository, component.Name)
		tags, err := registry.List(ctx, repo)
		if err != nil {
			return nil, err
		}
		version, err = registry.LatestVersion(tags)
		if err != nil {
			return nil, fmt.Errorf("resolving latest version of %s failed: %w", repo, err)
		}
	}

	url := registry.ArtifactURL(s.repository, component.Name, version)
	log.Info("pulling", "url", url)
	data, meta, err := registry.Pull(ctx, url, s.identities)
	if err != nil {
		return nil, fmt.Errorf("pulling %s failed: %w", url, err)
	}
	log.V(1).Info("pulled", "digest", meta.Digest)

	return data, nil
}
