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
	"io"
	"net/http"
	"strings"

	ctrllog "sigs.k8s.io/controller-runtime/pkg/log"

	"github.com/razee-io/razeedeploy-delta/pkg/components"
)

// HTTPSource downloads manifests from <base>/<ComponentDir>/<filePath>.
type HTTPSource struct {
	base       string
	filePath   string
	customPath bool
	client     *http.Client
}

// URL returns the download address of the component version.
// With the default file path a version maps to 'download/<version>'
// and latest to 'latest/download', a custom path gets the version as is.
func (s *HTTPSource) URL(component components.Component, version string) string {
	segment := version
	if !s.customPath {
		segment = "latest/download"
		if !isLatest(version) {
			segment = "download/" + version
		}
	} else if version == "" {
		segment = components.LatestVersion
	}
	return s.componentURL(component, segment)
}

// LatestURL returns the download address of the latest release.
func (s *HTTPSource) LatestURL(component components.Component) string {
	if s.customPath {
		return s.componentURL(component, components.LatestVersion)
	}
	return s.componentURL(component, "latest/download")
}

func (s *HTTPSource) componentURL(component components.Component, segment string) string {
	return fmt.Sprintf("%s/%s/%s", s.base, component.Dir, strings.Replace(s.filePath, VersionPlaceholder, segment, 1))
}

// Fetch downloads the component manifests, falling back to the latest
// release when the requested version can't be downloaded.
func (s *HTTPSource) Fetch(ctx context.Context, component components.Component, version string) ([]byte, error) {
	log := ctrllog.FromContext(ctx).WithValues("component", component.Name)

	uri := s.URL(component, version)
	log.Info("downloading", "url", uri)
	data, err := s.get(ctx, uri)
	if err == nil {
		return data, nil
	}

	latest := s.LatestURL(component)
	if latest == uri {
		return nil, err
	}
	log.Info("download failed, defaulting to latest", "url", uri, "latest", latest, "error", err.Error())
	return s.get(ctx, latest)
}

func (s *HTTPSource) get(ctx context.Context, uri string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, uri, nil)
	if err != nil {
		return nil, err
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("GET %s failed: %w", uri, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("GET %s failed: %s", uri, resp.Status)
	}

	return io.ReadAll(resp.Body)
}
