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

package lifecycle

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/fluxcd/pkg/ssa"
	"github.com/google/go-cmp/cmp"
	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"
	"k8s.io/apimachinery/pkg/runtime"

	"github.com/razee-io/razeedeploy-delta/pkg/components"
	"github.com/razee-io/razeedeploy-delta/pkg/kube/kubefake"
	"github.com/razee-io/razeedeploy-delta/pkg/manifest"
	"github.com/razee-io/razeedeploy-delta/pkg/resmgr"
)

const namespace = "razeedeploy"

const remoteResourceCRD = `apiVersion: apiextensions.k8s.io/v1
kind: CustomResourceDefinition
metadata:
  name: remoteresources.deploy.razee.io
spec:
  group: deploy.razee.io
  names:
    kind: RemoteResource
    listKind: RemoteResourceList
    plural: remoteresources
    singular: remoteresource
  scope: Namespaced
  versions:
  - name: v1alpha2
    served: true
    storage: true
`

func deployment(name string) string {
	return fmt.Sprintf(`apiVersion: apps/v1
kind: Deployment
metadata:
  name: %s
spec:
  template:
    spec:
      containers:
      - name: %s
        image: quay.io/razee/%s:0.1.0
`, name, name, name)
}

var testManifests = map[string]string{
	components.WatchKeeper:          deployment("watch-keeper"),
	components.ClusterSubscription:  deployment("clustersubscription"),
	components.RemoteResource:       remoteResourceCRD + "---\n" + deployment("remoteresource-controller"),
	components.ImpersonationWebhook: deployment("impersonation-webhook"),
}

var migrationWrites = []string{
	"delete customresourcedefinitions/encryptedresources.deploy.razee.io",
	"delete deployments/encryptedresource-controller",
}

type stubSource struct {
	mu        sync.Mutex
	manifests map[string]string
	fetched   []string
}

func (s *stubSource) Fetch(_ context.Context, c components.Component, version string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fetched = append(s.fetched, c.Name+"@"+version)
	data, ok := s.manifests[c.Name]
	if !ok {
		return nil, fmt.Errorf("GET %s failed: 404 Not Found", c.Dir)
	}
	return []byte(data), nil
}

type locatorSource struct {
	*stubSource
}

func (s locatorSource) LatestURL(c components.Component) string {
	return fmt.Sprintf("https://github.com/razee-io/%s/releases/latest/download/resource.yaml", c.Dir)
}

type recordingWaiter struct {
	waited     []string
	terminated []string
}

func (w *recordingWaiter) Wait(objects []*unstructured.Unstructured, _ ssa.WaitOptions) error {
	for _, o := range objects {
		w.waited = append(w.waited, o.GetKind()+"/"+o.GetName())
	}
	return nil
}

func (w *recordingWaiter) WaitForTermination(objects []*unstructured.Unstructured, _ ssa.WaitOptions) error {
	for _, o := range objects {
		w.terminated = append(w.terminated, o.GetKind()+"/"+o.GetName())
	}
	return nil
}

func noSleep(context.Context, time.Duration) error { return nil }

func newManager(cluster *kubefake.Cluster) *resmgr.ResourceManager {
	return resmgr.NewResourceManager(cluster.Client(), resmgr.Options{
		Namespace:            namespace,
		RemovalAttempts:      2,
		RegistrationAttempts: 2,
		Sleep:                noSleep,
	})
}

func selection(names ...string) *components.Selection {
	requested := map[string]string{}
	for _, name := range names {
		requested[name] = components.LatestVersion
	}
	return components.NewSelection(requested)
}

func objects(t *testing.T, data string) []runtime.Object {
	t.Helper()
	objs, err := manifest.ReadObjects([]byte(data))
	if err != nil {
		t.Fatal(err)
	}
	out := make([]runtime.Object, 0, len(objs))
	for _, o := range objs {
		if o.GetKind() == "Deployment" || o.GetKind() == "RemoteResource" {
			if o.GetNamespace() == "" {
				o.SetNamespace(namespace)
			}
		}
		out = append(out, o)
	}
	return out
}

func diffWrites(t *testing.T, want, got []string) {
	t.Helper()
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("writes mismatch (-want +got):\n%s", diff)
	}
}
