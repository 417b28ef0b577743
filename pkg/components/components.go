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

// Package components holds the catalog of razeedeploy components
// and the user's selection of components to install or remove.
package components

import (
	"sort"
	"strings"
)

const (
	WatchKeeper             = "watchkeeper"
	ClusterSubscription     = "clustersubscription"
	RemoteResource          = "remoteresource"
	RemoteResourceS3        = "remoteresources3"
	RemoteResourceS3Decrypt = "remoteresources3decrypt"
	MustacheTemplate        = "mustachetemplate"
	FeatureFlagSetLD        = "featureflagsetld"
	ManagedSet              = "managedset"
	ImpersonationWebhook    = "impersonationwebhook"
)

// LatestVersion is used when a component is selected without a version.
const LatestVersion = "latest"

// Component describes an installable add-on.
type Component struct {
	// Name is the canonical component key and CLI flag.
	Name string
	// Dir is the component's directory under the manifest source.
	Dir string
	// Aliases are the alternative CLI flags.
	Aliases []string
	// Requires names a component that must be installed alongside this one.
	Requires string
	// Description is shown in the CLI help.
	Description string
}

var catalog = []Component{
	{
		Name:        WatchKeeper,
		Dir:         "WatchKeeper",
		Aliases:     []string{"wk", "watch-keeper"},
		Description: "reports cluster resources to Razee",
	},
	{
		Name:        ClusterSubscription,
		Dir:         "ClusterSubscription",
		Aliases:     []string{"cs"},
		Requires:    RemoteResource,
		Description: "deploys the subscriptions assigned to the cluster",
	},
	{
		Name:        RemoteResource,
		Dir:         "RemoteResource",
		Aliases:     []string{"rr"},
		Description: "applies resources fetched from remote URLs",
	},
	{
		Name:        RemoteResourceS3,
		Dir:         "RemoteResourceS3",
		Aliases:     []string{"rrs3"},
		Description: "applies resources fetched from S3 buckets",
	},
	{
		Name:        RemoteResourceS3Decrypt,
		Dir:         "RemoteResourceS3Decrypt",
		Aliases:     []string{"rrs3d"},
		Description: "applies encrypted resources fetched from S3 buckets",
	},
	{
		Name:        MustacheTemplate,
		Dir:         "MustacheTemplate",
		Aliases:     []string{"mtp"},
		Description: "renders mustache templated resources",
	},
	{
		Name:        FeatureFlagSetLD,
		Dir:         "FeatureFlagSetLD",
		Aliases:     []string{"ffsld"},
		Description: "syncs LaunchDarkly feature flags",
	},
	{
		Name:        ManagedSet,
		Dir:         "ManagedSet",
		Aliases:     []string{"ms"},
		Description: "applies a set of resources as a unit",
	},
	{
		Name:        ImpersonationWebhook,
		Dir:         "ImpersonationWebhook",
		Aliases:     []string{"iw"},
		Description: "validates user impersonation of razee resources",
	},
}

// Catalog returns the components in installation order.
func Catalog() []Component {
	out := make([]Component, len(catalog))
	copy(out, catalog)
	return out
}

// Lookup finds a component by name or alias.
func Lookup(name string) (Component, bool) {
	name = strings.ToLower(name)
	for _, c := range catalog {
		if c.Name == name {
			return c, true
		}
		for _, alias := range c.Aliases {
			if alias == name {
				return c, true
			}
		}
	}
	return Component{}, false
}

// Selection holds the components requested by the user with their versions.
// An empty request selects every component of the catalog.
type Selection struct {
	requested map[string]string
	all       bool
}

// NewSelection returns a selection for the given component versions keyed by name.
func NewSelection(requested map[string]string) *Selection {
	s := &Selection{
		requested: make(map[string]string, len(requested)),
		all:       len(requested) == 0,
	}
	for name, version := range requested {
		s.requested[name] = version
	}
	return s
}

// All reports whether every component is selected.
func (s *Selection) All() bool {
	return s.all
}

// Requested reports whether the component was explicitly requested.
func (s *Selection) Requested(name string) bool {
	_, ok := s.requested[name]
	return ok
}

// Has reports whether the component is part of the selection.
func (s *Selection) Has(name string) bool {
	return s.all || s.Requested(name)
}

// Version returns the requested version of the component.
func (s *Selection) Version(name string) string {
	if v := s.requested[name]; v != "" {
		return v
	}
	return LatestVersion
}

// Drop removes the component from the explicit request.
func (s *Selection) Drop(name string) {
	delete(s.requested, name)
}

// Keys returns the explicitly requested keys in alphabetical order.
func (s *Selection) Keys() []string {
	keys := make([]string, 0, len(s.requested))
	for k := range s.requested {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Components returns the selected catalog components in installation order.
func (s *Selection) Components() []Component {
	var out []Component
	for _, c := range catalog {
		if s.Has(c.Name) {
			out = append(out, c)
		}
	}
	return out
}
