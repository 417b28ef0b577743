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

package kube

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	apierrors "k8s.io/apimachinery/pkg/api/errors"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"
	"k8s.io/apimachinery/pkg/runtime/schema"
	"k8s.io/apimachinery/pkg/types"
	"k8s.io/client-go/discovery"
	"k8s.io/client-go/dynamic"

	"github.com/razee-io/razeedeploy-delta/pkg/resmgr"
)

// Client implements resmgr.ResourceClient with the Kubernetes dynamic client.
// API errors carrying a status code are returned as responses.
type Client struct {
	dynamic   dynamic.Interface
	discovery discovery.DiscoveryInterface
}

// NewClient returns a Client backed by the given dynamic and discovery clients.
func NewClient(dynamicClient dynamic.Interface, discoveryClient discovery.DiscoveryInterface) *Client {
	return &Client{
		dynamic:   dynamicClient,
		discovery: discoveryClient,
	}
}

// Describe looks up the resource type in the server's discovery document.
// Subresources and types that don't support the verb are not matched.
func (c *Client) Describe(_ context.Context, apiVersion, kind string, verb resmgr.Verb) (resmgr.Descriptor, bool, error) {
	gv, err := schema.ParseGroupVersion(apiVersion)
	if err != nil || kind == "" {
		return resmgr.Descriptor{}, false, nil
	}

	resources, err := c.discovery.ServerResourcesForGroupVersion(gv.String())
	if err != nil {
		if apierrors.IsNotFound(err) {
			return resmgr.Descriptor{}, false, nil
		}
		return resmgr.Descriptor{}, false, fmt.Errorf("discovery of %s failed: %w", apiVersion, err)
	}

	for _, r := range resources.APIResources {
		if r.Kind != kind || strings.Contains(r.Name, "/") {
			continue
		}
		if verb != "" && !hasVerb(r.Verbs, string(verb)) {
			continue
		}
		return resmgr.Descriptor{
			GroupVersionKind: gv.WithKind(kind),
			Resource:         r.Name,
			Namespaced:       r.Namespaced,
		}, true, nil
	}
	return resmgr.Descriptor{}, false, nil
}

func (c *Client) Get(ctx context.Context, d resmgr.Descriptor, name, namespace string) (resmgr.Response, error) {
	obj, err := c.resource(d, namespace).Get(ctx, name, metav1.GetOptions{})
	return objectResponse(http.StatusOK, obj, err)
}

// List returns the objects of the given type, across all namespaces if namespace is empty.
func (c *Client) List(ctx context.Context, d resmgr.Descriptor, namespace string) (resmgr.Response, error) {
	list, err := c.resource(d, namespace).List(ctx, metav1.ListOptions{})
	if err != nil {
		return errorResponse(err)
	}
	return resmgr.Response{StatusCode: http.StatusOK, List: list}, nil
}

func (c *Client) Post(ctx context.Context, d resmgr.Descriptor, object *unstructured.Unstructured) (resmgr.Response, error) {
	obj, err := c.resource(d, object.GetNamespace()).Create(ctx, object, metav1.CreateOptions{})
	return objectResponse(http.StatusCreated, obj, err)
}

func (c *Client) Put(ctx context.Context, d resmgr.Descriptor, object *unstructured.Unstructured) (resmgr.Response, error) {
	obj, err := c.resource(d, object.GetNamespace()).Update(ctx, object, metav1.UpdateOptions{})
	return objectResponse(http.StatusOK, obj, err)
}

func (c *Client) Delete(ctx context.Context, d resmgr.Descriptor, name, namespace string) (resmgr.Response, error) {
	err := c.resource(d, namespace).Delete(ctx, name, metav1.DeleteOptions{})
	return objectResponse(http.StatusOK, nil, err)
}

func (c *Client) MergePatch(ctx context.Context, d resmgr.Descriptor, name, namespace string, patch []byte) (resmgr.Response, error) {
	obj, err := c.resource(d, namespace).Patch(ctx, name, types.MergePatchType, patch, metav1.PatchOptions{})
	return objectResponse(http.StatusOK, obj, err)
}

func (c *Client) resource(d resmgr.Descriptor, namespace string) dynamic.ResourceInterface {
	ri := c.dynamic.Resource(d.GroupVersionResource())
	if d.Namespaced && namespace != "" {
		return ri.Namespace(namespace)
	}
	return ri
}

func objectResponse(code int, obj *unstructured.Unstructured, err error) (resmgr.Response, error) {
	if err != nil {
		return errorResponse(err)
	}
	return resmgr.Response{StatusCode: code, Object: obj}, nil
}

// errorResponse converts API status errors to a response,
// any other error is returned as is.
func errorResponse(err error) (resmgr.Response, error) {
	var status apierrors.APIStatus
	if errors.As(err, &status) {
		if code := int(status.Status().Code); code != 0 {
			return resmgr.Response{StatusCode: code}, nil
		}
	}
	return resmgr.Response{}, err
}

func hasVerb(verbs metav1.Verbs, verb string) bool {
	for _, v := range verbs {
		if v == verb {
			return true
		}
	}
	return false
}
