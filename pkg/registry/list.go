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

package registry

import (
	"context"
	"fmt"
	"sort"

	"github.com/Masterminds/semver/v3"
	"github.com/google/go-containerregistry/pkg/crane"
)

// List returns the tags of the given repository.
func List(ctx context.Context, repository string) ([]string, error) {
	tags, err := crane.ListTags(repository, craneOptions(ctx)...)
	if err != nil {
		return nil, fmt.Errorf("listing tags of %s failed: %w", repository, err)
	}
	return tags, nil
}

// LatestVersion returns the tag with the highest semantic version,
// tags that are not valid versions and prereleases are ignored.
func LatestVersion(tags []string) (string, error) {
	var versions []*semver.Version
	for _, tag := range tags {
		v, err := semver.NewVersion(tag)
		if err != nil || v.Prerelease() != "" {
			continue
		}
		versions = append(versions, v)
	}

	if len(versions) == 0 {
		return "", fmt.Errorf("no semver tags found")
	}

	sort.Sort(sort.Reverse(semver.Collection(versions)))
	return versions[0].Original(), nil
}
