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

// Package kubefake provides a kube.Client backed by the client-go fakes
// with the resource types razeedeploy manages registered for discovery.
package kubefake

import (
	"fmt"

	apierrors "k8s.io/apimachinery/pkg/api/errors"
	"k8s.io/apimachinery/pkg/api/meta"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/runtime"
	"k8s.io/apimachinery/pkg/runtime/schema"
	discoveryfake "k8s.io/client-go/discovery/fake"
	dynamicfake "k8s.io/client-go/dynamic/fake"
	clienttesting "k8s.io/client-go/testing"

	"github.com/razee-io/razeedeploy-delta/pkg/kube"
)

var allVerbs = metav1.Verbs{"create", "delete", "deletecollection", "get", "list", "patch", "update", "watch"}

type resource struct {
	groupVersion string
	name         string
	kind         string
	namespaced   bool
}

var builtin = []resource{
	{"v1", "namespaces", "Namespace", false},
	{"v1", "serviceaccounts", "ServiceAccount", true},
	{"v1", "configmaps", "ConfigMap", true},
	{"v1", "secrets", "Secret", true},
	{"apps/v1", "deployments", "Deployment", true},
	{"rbac.authorization.k8s.io/v1", "clusterroles", "ClusterRole", false},
	{"rbac.authorization.k8s.io/v1", "clusterrolebindings", "ClusterRoleBinding", false},
	{"apiextensions.k8s.io/v1", "customresourcedefinitions", "CustomResourceDefinition", false},
	{"admissionregistration.k8s.io/v1", "validatingwebhookconfigurations", "ValidatingWebhookConfiguration", false},
}

// RemoteResourceAPIVersion is the API version of the razee custom resources
// registered by WithCustomResource.
const RemoteResourceAPIVersion = "deploy.razee.io/v1alpha2"

// Cluster is a fake API server.
type Cluster struct {
	Dynamic   *dynamicfake.FakeDynamicClient
	Discovery *discoveryfake.FakeDiscovery
}

// Option customizes the fake cluster.
type Option func(*[]resource)

// WithCustomResource registers a namespaced deploy.razee.io/v1alpha2 kind.
func WithCustomResource(kind, plural string) Option {
	return func(r *[]resource) {
		*r = append(*r, resource{RemoteResourceAPIVersion, plural, kind, true})
	}
}

// NewCluster returns a fake cluster seeded with the given unstructured objects.
func NewCluster(objects []runtime.Object, opts ...Option) *Cluster {
	resources := append([]resource{}, builtin...)
	for _, opt := range opts {
		opt(&resources)
	}

	listKinds := make(map[schema.GroupVersionResource]string, len(resources))
	byGroupVersion := map[string]*metav1.APIResourceList{}
	var lists []*metav1.APIResourceList
	for _, r := range resources {
		gv, _ := schema.ParseGroupVersion(r.groupVersion)
		listKinds[gv.WithResource(r.name)] = r.kind + "List"

		list, ok := byGroupVersion[r.groupVersion]
		if !ok {
			list = &metav1.APIResourceList{GroupVersion: r.groupVersion}
			byGroupVersion[r.groupVersion] = list
			lists = append(lists, list)
		}
		list.APIResources = append(list.APIResources, metav1.APIResource{
			Name:       r.name,
			Kind:       r.kind,
			Namespaced: r.namespaced,
			Verbs:      allVerbs,
		})
	}

	discoveryClient := &discoveryfake.FakeDiscovery{Fake: &clienttesting.Fake{}}
	discoveryClient.Resources = lists

	return &Cluster{
		Dynamic:   dynamicfake.NewSimpleDynamicClientWithCustomListKinds(runtime.NewScheme(), listKinds, objects...),
		Discovery: discoveryClient,
	}
}

// Client returns a kube.Client talking to the fake cluster.
func (c *Cluster) Client() *kube.Client {
	return kube.NewClient(c.Dynamic, c.Discovery)
}

// Writes returns the mutating actions recorded by the dynamic client
// formatted as '<verb> <resource>/<name>'.
func (c *Cluster) Writes() []string {
	var out []string
	for _, action := range c.Dynamic.Actions() {
		var name string
		switch action.GetVerb() {
		case "create", "update":
			a, ok := action.(interface{ GetObject() runtime.Object })
			if !ok {
				continue
			}
			obj, err := meta.Accessor(a.GetObject())
			if err != nil {
				continue
			}
			name = obj.GetName()
		case "patch", "delete":
			a, ok := action.(interface{ GetName() string })
			if !ok {
				continue
			}
			name = a.GetName()
		default:
			continue
		}
		out = append(out, fmt.Sprintf("%s %s/%s", action.GetVerb(), action.GetResource().Resource, name))
	}
	return out
}

// Fail makes every request with the given verb on the resource
// return an API error with the given status code.
func (c *Cluster) Fail(verb, resource string, code int32) {
	c.Dynamic.PrependReactor(verb, resource, func(action clienttesting.Action) (bool, runtime.Object, error) {
		return true, nil, &apierrors.StatusError{ErrStatus: metav1.Status{
			Status:  metav1.StatusFailure,
			Code:    code,
			Reason:  metav1.StatusReasonUnknown,
			Message: fmt.Sprintf("%s %s rejected", verb, resource),
		}}
	})
}
