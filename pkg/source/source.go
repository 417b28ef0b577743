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

// Package source retrieves the manifests of razeedeploy components
// from HTTP release servers, OCI repositories or local directories.
package source

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"filippo.io/age"

	"github.com/razee-io/razeedeploy-delta/pkg/components"
	"github.com/razee-io/razeedeploy-delta/pkg/registry"
)

const (
	// DefaultFileSource is the base URL of the razee-io release servers.
	DefaultFileSource = "https://github.com/razee-io"
	// DefaultFilePath is appended to the component directory.
	DefaultFilePath = "releases/" + VersionPlaceholder + "/resource.yaml"
	// VersionPlaceholder is substituted with the component version.
	VersionPlaceholder = "{{install_version}}"
)

// Source returns the multi-doc YAML manifests of a component.
type Source interface {
	Fetch(ctx context.Context, component components.Component, version string) ([]byte, error)
}

// LatestLocator is implemented by sources that can point a
// RemoteResource at the latest manifests of a component.
type LatestLocator interface {
	LatestURL(component components.Component) string
}

// Options configures the source returned by New.
type Options struct {
	// FilePath is the path after the component directory of an HTTP source,
	// an empty value selects DefaultFilePath. With a custom path the version
	// replaces the placeholder as is.
	FilePath string
	// Identities decrypt age encrypted OCI artifacts.
	Identities []age.Identity
	// HTTPClient overrides the client used by HTTP sources.
	HTTPClient *http.Client
}

// New returns the source matching the fileSource address. An empty
// address selects DefaultFileSource.
func New(fileSource string, opts Options) (Source, error) {
	if fileSource == "" {
		fileSource = DefaultFileSource
	}

	if strings.HasPrefix(fileSource, registry.URLPrefix) {
		repo, err := registry.ParseRepositoryURL(fileSource)
		if err != nil {
			return nil, err
		}
		return &OCISource{repository: repo, identities: opts.Identities}, nil
	}

	if u, err := url.Parse(fileSource); err == nil && (u.Scheme == "http" || u.Scheme == "https") && u.Host != "" {
		return newHTTPSource(fileSource, opts), nil
	}

	if fi, err := os.Stat(fileSource); err == nil && fi.IsDir() {
		return &LocalSource{dir: fileSource}, nil
	}

	return nil, fmt.Errorf("'%s' not a valid source url", fileSource)
}

func newHTTPSource(base string, opts Options) *HTTPSource {
	s := &HTTPSource{
		base:       strings.TrimRight(base, "/"),
		filePath:   opts.FilePath,
		customPath: opts.FilePath != "" && opts.FilePath != DefaultFilePath,
		client:     opts.HTTPClient,
	}
	if !s.customPath {
		s.filePath = DefaultFilePath
	}
	if s.client == nil {
		s.client = &http.Client{Timeout: 30 * time.Second}
	}
	return s
}

func isLatest(version string) bool {
	return version == "" || strings.EqualFold(version, components.LatestVersion)
}
