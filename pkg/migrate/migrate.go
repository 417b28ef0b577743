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

// Package migrate removes the resources of retired razeedeploy components.
// Their manifests can no longer be downloaded, so they are embedded here.
package migrate

import (
	"bytes"
	"context"
	"fmt"
	"text/template"

	"github.com/Masterminds/sprig/v3"
	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"
	ctrllog "sigs.k8s.io/controller-runtime/pkg/log"

	"github.com/razee-io/razeedeploy-delta/pkg/components"
	"github.com/razee-io/razeedeploy-delta/pkg/manifest"
	"github.com/razee-io/razeedeploy-delta/pkg/resmgr"
)

// Entry is a retired component and the manifest of the resources it left behind.
type Entry struct {
	Key string
	// Manifest is a template rendered with the target namespace as .Namespace.
	Manifest string
}

var registry = []Entry{
	{
		Key: "encryptedresource",
		Manifest: `apiVersion: v1
kind: List
metadata:
  name: encryptedresource-controller-list
  annotations:
    version: "deprecated"
items:
- apiVersion: apps/v1
  kind: Deployment
  metadata:
    name: encryptedresource-controller
    namespace: {{ .Namespace }}
- apiVersion: apiextensions.k8s.io/v1
  kind: CustomResourceDefinition
  metadata:
    name: encryptedresources.deploy.razee.io
`,
	},
}

// Registry returns a copy of the retired components table.
func Registry() []Entry {
	out := make([]Entry, len(registry))
	copy(out, registry)
	return out
}

// Objects renders the entry manifest for the namespace.
func (e Entry) Objects(namespace string) ([]*unstructured.Unstructured, error) {
	tpl, err := template.New(e.Key).Funcs(sprig.TxtFuncMap()).Parse(e.Manifest)
	if err != nil {
		return nil, fmt.Errorf("parsing %s manifest failed: %w", e.Key, err)
	}

	var buf bytes.Buffer
	if err := tpl.Execute(&buf, struct{ Namespace string }{namespace}); err != nil {
		return nil, fmt.Errorf("rendering %s manifest failed: %w", e.Key, err)
	}
	return manifest.ReadObjects(buf.Bytes())
}

// Options holds the teardown settings of a migration run.
type Options struct {
	Force bool
}

// Migrator removes the retired components from the cluster.
type Migrator struct {
	rm      *resmgr.ResourceManager
	entries []Entry
}

// NewMigrator returns a Migrator for the retired components table.
func NewMigrator(rm *resmgr.ResourceManager) *Migrator {
	return &Migrator{
		rm:      rm,
		entries: Registry(),
	}
}

// Purge drops the retired components from the user's selection
// and returns the dropped keys.
func (m *Migrator) Purge(ctx context.Context, selection *components.Selection) []string {
	var purged []string
	for _, e := range m.entries {
		if selection.Requested(e.Key) {
			selection.Drop(e.Key)
			purged = append(purged, e.Key)
			ctrllog.FromContext(ctx).Info("component is deprecated and removed automatically", "component", e.Key)
		}
	}
	return purged
}

// Run removes the resources of every retired component. Failures are logged,
// they are not returned since the resources may never have been installed.
func (m *Migrator) Run(ctx context.Context, opts Options) *resmgr.ChangeSet {
	changeSet := resmgr.NewChangeSet()
	for _, e := range m.entries {
		log := ctrllog.FromContext(ctx).WithValues("component", e.Key)
		log.Info("removing deprecated resources")

		objects, err := e.Objects(m.rm.Namespace())
		if err != nil {
			log.Error(err, "reading deprecated manifest failed")
			continue
		}

		cs, err := m.rm.RemoveComponent(ctx, objects, opts.Force)
		changeSet.AddAll(cs.Entries)
		if err != nil || !cs.Success() {
			log.Error(err, "failed to remove deprecated resources, if still present manual removal is recommended")
		}
	}
	return changeSet
}
