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
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"filippo.io/age"
	"github.com/google/go-cmp/cmp"
	. "github.com/onsi/gomega"

	"github.com/razee-io/razeedeploy-delta/pkg/components"
	"github.com/razee-io/razeedeploy-delta/pkg/registry"
)

const remoteResourceManifest = `apiVersion: v1
kind: ConfigMap
metadata:
  name: remoteresource-controller
data:
  version: %s
`

func lookup(t *testing.T, name string) components.Component {
	t.Helper()
	c, ok := components.Lookup(name)
	if !ok {
		t.Fatalf("component %s not found", name)
	}
	return c
}

func TestNew(t *testing.T) {
	dir := t.TempDir()
	tests := []struct {
		source  string
		want    string
		wantErr bool
	}{
		{source: "", want: "*source.HTTPSource"},
		{source: "https://github.com/razee-io//", want: "*source.HTTPSource"},
		{source: "oci://ghcr.io/razee-io", want: "*source.OCISource"},
		{source: dir, want: "*source.LocalSource"},
		{source: "ftp://example.com/razee", wantErr: true},
		{source: "not a source", wantErr: true},
		{source: "oci://", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.source, func(t *testing.T) {
			g := NewWithT(t)
			got, err := New(tt.source, Options{})
			if tt.wantErr {
				g.Expect(err).To(HaveOccurred())
				return
			}
			g.Expect(err).ToNot(HaveOccurred())
			g.Expect(fmt.Sprintf("%T", got)).To(Equal(tt.want))
		})
	}
}

func TestHTTPSource_URL(t *testing.T) {
	wk := lookup(t, "wk")

	defaultPath, err := New("https://github.com/razee-io/", Options{})
	if err != nil {
		t.Fatal(err)
	}
	customPath, err := New("https://example.com/razee", Options{FilePath: "{{install_version}}/resource.yaml"})
	if err != nil {
		t.Fatal(err)
	}

	got := []string{
		defaultPath.(*HTTPSource).URL(wk, "0.8.0"),
		defaultPath.(*HTTPSource).URL(wk, "Latest"),
		defaultPath.(LatestLocator).LatestURL(wk),
		customPath.(*HTTPSource).URL(wk, "0.8.0"),
		customPath.(*HTTPSource).URL(wk, "latest"),
		customPath.(LatestLocator).LatestURL(wk),
	}
	want := []string{
		"https://github.com/razee-io/WatchKeeper/releases/download/0.8.0/resource.yaml",
		"https://github.com/razee-io/WatchKeeper/releases/latest/download/resource.yaml",
		"https://github.com/razee-io/WatchKeeper/releases/latest/download/resource.yaml",
		"https://example.com/razee/WatchKeeper/0.8.0/resource.yaml",
		"https://example.com/razee/WatchKeeper/latest/resource.yaml",
		"https://example.com/razee/WatchKeeper/latest/resource.yaml",
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("URL mismatch (-want +got):\n%s", diff)
	}
}

func TestHTTPSource_Fetch(t *testing.T) {
	g := NewWithT(t)
	ctx := context.Background()

	var mu sync.Mutex
	var requested []string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		requested = append(requested, r.URL.Path)
		mu.Unlock()
		switch r.URL.Path {
		case "/RemoteResource/releases/download/1.0.0/resource.yaml":
			fmt.Fprintf(w, remoteResourceManifest, "1.0.0")
		case "/RemoteResource/releases/latest/download/resource.yaml":
			fmt.Fprintf(w, remoteResourceManifest, "latest")
		default:
			http.NotFound(w, r)
		}
	}))
	defer server.Close()

	src, err := New(server.URL+"/", Options{})
	g.Expect(err).ToNot(HaveOccurred())
	rr := lookup(t, "rr")

	data, err := src.Fetch(ctx, rr, "1.0.0")
	g.Expect(err).ToNot(HaveOccurred())
	g.Expect(string(data)).To(ContainSubstring("version: 1.0.0"))

	data, err = src.Fetch(ctx, rr, "9.9.9")
	g.Expect(err).ToNot(HaveOccurred())
	g.Expect(string(data)).To(ContainSubstring("version: latest"))

	_, err = src.Fetch(ctx, lookup(t, "ms"), "latest")
	g.Expect(err).To(HaveOccurred())
	g.Expect(err.Error()).To(ContainSubstring("404"))

	mu.Lock()
	defer mu.Unlock()
	g.Expect(requested).To(Equal([]string{
		"/RemoteResource/releases/download/1.0.0/resource.yaml",
		"/RemoteResource/releases/download/9.9.9/resource.yaml",
		"/RemoteResource/releases/latest/download/resource.yaml",
		"/ManagedSet/releases/latest/download/resource.yaml",
	}))
}

func TestLocalSource_Fetch(t *testing.T) {
	g := NewWithT(t)
	ctx := context.Background()
	dir := t.TempDir()

	rrDir := filepath.Join(dir, "RemoteResource")
	g.Expect(os.MkdirAll(rrDir, 0755)).To(Succeed())
	g.Expect(os.WriteFile(filepath.Join(rrDir, "resource.yaml"), []byte(fmt.Sprintf(remoteResourceManifest, "local")), 0644)).To(Succeed())

	msDir := filepath.Join(dir, "ManagedSet")
	g.Expect(os.MkdirAll(msDir, 0755)).To(Succeed())
	g.Expect(os.WriteFile(filepath.Join(msDir, "configmap.yaml"), []byte(fmt.Sprintf(remoteResourceManifest, "kustomized")), 0644)).To(Succeed())
	g.Expect(os.WriteFile(filepath.Join(msDir, "kustomization.yaml"), []byte(`apiVersion: kustomize.config.k8s.io/v1beta1
kind: Kustomization
namespace: razeedeploy
resources:
- configmap.yaml
`), 0644)).To(Succeed())

	src, err := New(dir, Options{})
	g.Expect(err).ToNot(HaveOccurred())

	data, err := src.Fetch(ctx, lookup(t, "rr"), "latest")
	g.Expect(err).ToNot(HaveOccurred())
	g.Expect(string(data)).To(ContainSubstring("version: local"))

	data, err = src.Fetch(ctx, lookup(t, "ms"), "latest")
	g.Expect(err).ToNot(HaveOccurred())
	g.Expect(string(data)).To(ContainSubstring("version: kustomized"))
	g.Expect(string(data)).To(ContainSubstring("namespace: razeedeploy"))

	_, err = src.Fetch(ctx, lookup(t, "wk"), "latest")
	g.Expect(err).To(HaveOccurred())
}

func TestOCISource_Fetch(t *testing.T) {
	g := NewWithT(t)
	ctx := context.Background()

	identity, err := age.GenerateX25519Identity()
	g.Expect(err).ToNot(HaveOccurred())

	repo := registryHost + "/razee-io"
	for _, version := range []string{"0.1.0", "0.2.0", "0.3.0-rc.1"} {
		_, err := registry.Push(ctx, registry.ArtifactURL(repo, components.FeatureFlagSetLD, version),
			[]byte(fmt.Sprintf(remoteResourceManifest, version)),
			&registry.Metadata{Component: components.FeatureFlagSetLD, Version: version},
			[]age.Recipient{identity.Recipient()})
		g.Expect(err).ToNot(HaveOccurred())
	}

	src, err := New(registry.URLPrefix+repo, Options{Identities: []age.Identity{identity}})
	g.Expect(err).ToNot(HaveOccurred())
	_, ok := src.(LatestLocator)
	g.Expect(ok).To(BeFalse())

	ffsld := lookup(t, "ffsld")

	data, err := src.Fetch(ctx, ffsld, "latest")
	g.Expect(err).ToNot(HaveOccurred())
	g.Expect(string(data)).To(ContainSubstring("version: 0.2.0"))

	data, err = src.Fetch(ctx, ffsld, "0.1.0")
	g.Expect(err).ToNot(HaveOccurred())
	g.Expect(string(data)).To(ContainSubstring("version: 0.1.0"))

	locked, err := New(registry.URLPrefix+repo, Options{})
	g.Expect(err).ToNot(HaveOccurred())
	_, err = locked.Fetch(ctx, ffsld, "0.1.0")
	g.Expect(err).To(HaveOccurred())
	g.Expect(strings.Contains(err.Error(), "age identity")).To(BeTrue())
}
