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

package resmgr

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"testing"

	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"
	"k8s.io/apimachinery/pkg/runtime/schema"

	"github.com/razee-io/razeedeploy-delta/pkg/manifest"
)

type call struct {
	Method          string
	Subject         string
	ResourceVersion string
}

func (c call) String() string {
	return c.Method + " " + c.Subject
}

// fakeClient is an in-memory ResourceClient that records every request.
type fakeClient struct {
	types   map[string]Descriptor
	objects map[string]*unstructured.Unstructured
	calls   []call

	// status overrides the response code for "METHOD Kind/name".
	status map[string]int
	// lingering keeps deleted objects visible for the given number of GETs, -1 means forever.
	lingering map[string]int
	// onDescribe is called before every type lookup.
	onDescribe func(apiVersion, kind string)
	version    int
}

func newFakeClient() *fakeClient {
	c := &fakeClient{
		types:     map[string]Descriptor{},
		objects:   map[string]*unstructured.Unstructured{},
		status:    map[string]int{},
		lingering: map[string]int{},
	}
	c.addType("v1", "Namespace", "namespaces", false)
	c.addType("v1", "ServiceAccount", "serviceaccounts", true)
	c.addType("v1", "ConfigMap", "configmaps", true)
	c.addType("v1", "Secret", "secrets", true)
	c.addType("apps/v1", "Deployment", "deployments", true)
	c.addType("rbac.authorization.k8s.io/v1", "ClusterRole", "clusterroles", false)
	c.addType("rbac.authorization.k8s.io/v1", "ClusterRoleBinding", "clusterrolebindings", false)
	c.addType("apiextensions.k8s.io/v1", "CustomResourceDefinition", "customresourcedefinitions", false)
	return c
}

func (c *fakeClient) addType(apiVersion, kind, resource string, namespaced bool) {
	gv, _ := schema.ParseGroupVersion(apiVersion)
	c.types[apiVersion+"/"+kind] = Descriptor{
		GroupVersionKind: gv.WithKind(kind),
		Resource:         resource,
		Namespaced:       namespaced,
	}
}

func (c *fakeClient) store(object *unstructured.Unstructured) {
	c.version++
	stored := object.DeepCopy()
	stored.SetResourceVersion(strconv.Itoa(c.version))
	c.objects[key(object.GetKind(), object.GetNamespace(), object.GetName())] = stored
}

func key(kind, namespace, name string) string {
	return fmt.Sprintf("%s/%s/%s", kind, namespace, name)
}

func (c *fakeClient) record(method string, d Descriptor, name, resourceVersion string) (int, bool) {
	c.calls = append(c.calls, call{Method: method, Subject: d.GroupVersionKind.Kind + "/" + name, ResourceVersion: resourceVersion})
	code, ok := c.status[method+" "+d.GroupVersionKind.Kind+"/"+name]
	return code, ok
}

func (c *fakeClient) methods() []string {
	var out []string
	for _, cl := range c.calls {
		out = append(out, cl.String())
	}
	return out
}

func (c *fakeClient) writes() []string {
	var out []string
	for _, cl := range c.calls {
		if cl.Method != http.MethodGet {
			out = append(out, cl.String())
		}
	}
	return out
}

func (c *fakeClient) Describe(_ context.Context, apiVersion, kind string, _ Verb) (Descriptor, bool, error) {
	if c.onDescribe != nil {
		c.onDescribe(apiVersion, kind)
	}
	d, ok := c.types[apiVersion+"/"+kind]
	return d, ok, nil
}

func (c *fakeClient) Get(_ context.Context, d Descriptor, name, namespace string) (Response, error) {
	if code, ok := c.record(http.MethodGet, d, name, ""); ok {
		return Response{StatusCode: code}, nil
	}
	k := key(d.GroupVersionKind.Kind, namespace, name)
	if n, ok := c.lingering[k]; ok && n != 0 {
		if n > 0 {
			c.lingering[k] = n - 1
		}
		return Response{StatusCode: http.StatusOK}, nil
	}
	if obj, ok := c.objects[k]; ok {
		return Response{StatusCode: http.StatusOK, Object: obj.DeepCopy()}, nil
	}
	return Response{StatusCode: http.StatusNotFound}, nil
}

func (c *fakeClient) List(_ context.Context, d Descriptor, namespace string) (Response, error) {
	c.record("LIST", d, "", "")
	list := &unstructured.UnstructuredList{}
	for _, obj := range c.objects {
		if obj.GetKind() != d.GroupVersionKind.Kind {
			continue
		}
		if namespace != "" && obj.GetNamespace() != namespace {
			continue
		}
		list.Items = append(list.Items, *obj.DeepCopy())
	}
	return Response{StatusCode: http.StatusOK, List: list}, nil
}

func (c *fakeClient) Post(_ context.Context, d Descriptor, object *unstructured.Unstructured) (Response, error) {
	if code, ok := c.record(http.MethodPost, d, object.GetName(), object.GetResourceVersion()); ok {
		return Response{StatusCode: code}, nil
	}
	if _, ok := c.objects[key(object.GetKind(), object.GetNamespace(), object.GetName())]; ok {
		return Response{StatusCode: http.StatusConflict}, nil
	}
	c.store(object)
	return Response{StatusCode: http.StatusCreated}, nil
}

func (c *fakeClient) Put(_ context.Context, d Descriptor, object *unstructured.Unstructured) (Response, error) {
	if code, ok := c.record(http.MethodPut, d, object.GetName(), object.GetResourceVersion()); ok {
		return Response{StatusCode: code}, nil
	}
	c.store(object)
	return Response{StatusCode: http.StatusOK}, nil
}

func (c *fakeClient) Delete(_ context.Context, d Descriptor, name, namespace string) (Response, error) {
	if code, ok := c.record(http.MethodDelete, d, name, ""); ok {
		return Response{StatusCode: code}, nil
	}
	k := key(d.GroupVersionKind.Kind, namespace, name)
	if _, ok := c.objects[k]; !ok {
		return Response{StatusCode: http.StatusNotFound}, nil
	}
	delete(c.objects, k)
	return Response{StatusCode: http.StatusOK}, nil
}

func (c *fakeClient) MergePatch(_ context.Context, d Descriptor, name, namespace string, patch []byte) (Response, error) {
	if code, ok := c.record(http.MethodPatch, d, name, ""); ok {
		return Response{StatusCode: code}, nil
	}
	obj, ok := c.objects[key(d.GroupVersionKind.Kind, namespace, name)]
	if !ok {
		return Response{StatusCode: http.StatusNotFound}, nil
	}
	if strings.Contains(string(patch), `"finalizers":null`) {
		obj.SetFinalizers(nil)
	}
	return Response{StatusCode: http.StatusOK}, nil
}

func readObjects(t *testing.T, data string) []*unstructured.Unstructured {
	t.Helper()
	objects, err := manifest.ReadObjects([]byte(data))
	if err != nil {
		t.Fatal(err)
	}
	return objects
}
