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

	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"
	"k8s.io/apimachinery/pkg/runtime/schema"
)

// Verb is the API verb a resource type must support to be described.
type Verb string

const (
	VerbGet    Verb = "get"
	VerbList   Verb = "list"
	VerbUpdate Verb = "update"
	VerbDelete Verb = "delete"
)

// Descriptor holds the API details of a resource type served by the cluster.
type Descriptor struct {
	GroupVersionKind schema.GroupVersionKind
	// Resource is the plural resource name, e.g. 'deployments'.
	Resource   string
	Namespaced bool
}

// GroupVersionResource returns the resource coordinates of the descriptor.
func (d Descriptor) GroupVersionResource() schema.GroupVersionResource {
	return d.GroupVersionKind.GroupVersion().WithResource(d.Resource)
}

// Response is the outcome of an API call. Non-2xx status codes are
// reported here and not as errors.
type Response struct {
	StatusCode int
	Object     *unstructured.Unstructured
	List       *unstructured.UnstructuredList
}

// ResourceClient performs API calls against the cluster.
// Implementations return an error only for transport level failures.
type ResourceClient interface {
	// Describe looks up the resource type for the given apiVersion and kind.
	// The bool is false when the cluster does not serve the type with the given verb.
	Describe(ctx context.Context, apiVersion, kind string, verb Verb) (Descriptor, bool, error)

	Get(ctx context.Context, d Descriptor, name, namespace string) (Response, error)
	List(ctx context.Context, d Descriptor, namespace string) (Response, error)
	Post(ctx context.Context, d Descriptor, object *unstructured.Unstructured) (Response, error)
	Put(ctx context.Context, d Descriptor, object *unstructured.Unstructured) (Response, error)
	Delete(ctx context.Context, d Descriptor, name, namespace string) (Response, error)
	MergePatch(ctx context.Context, d Descriptor, name, namespace string, patch []byte) (Response, error)
}
