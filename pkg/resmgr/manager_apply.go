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
	"strings"

	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"
	ctrllog "sigs.k8s.io/controller-runtime/pkg/log"
)

// ApplyMode selects how an object is written to the cluster.
type ApplyMode int

const (
	// EnsureExists creates missing objects and never modifies existing ones.
	EnsureExists ApplyMode = iota
	// Replace creates missing objects and overwrites existing ones.
	Replace
)

func (m ApplyMode) String() string {
	if m == Replace {
		return "replace"
	}
	return "ensureExists"
}

// Apply writes the given object to the cluster according to the mode.
// The object's namespace is defaulted and its images rewritten in place.
// At most one write request is issued.
func (rm *ResourceManager) Apply(ctx context.Context, object *unstructured.Unstructured, mode ApplyMode) ChangeSetEntry {
	log := ctrllog.FromContext(ctx).WithValues("object", fmt.Sprintf("%s/%s", object.GetKind(), object.GetName()), "mode", mode.String())

	d, found, err := rm.client.Describe(ctx, object.GetAPIVersion(), object.GetKind(), VerbUpdate)
	if err != nil {
		log.Error(err, "describe failed")
		return rm.failedEntry(object, fmt.Errorf("describe failed: %w", err))
	}
	if !found {
		err := fmt.Errorf("resource type %s %s not found", object.GetAPIVersion(), object.GetKind())
		log.Error(err, "skipping")
		return rm.failedEntry(object, err)
	}

	rm.defaultNamespace(d, object)
	if err := rm.rewriteImages(object); err != nil {
		return rm.failedEntry(object, err)
	}

	var entry ChangeSetEntry
	switch mode {
	case Replace:
		entry = rm.replace(ctx, d, object)
	default:
		entry = rm.ensureExists(ctx, d, object)
	}
	if entry.Failed() {
		log.Error(entry.Err, "apply failed")
	} else {
		log.V(1).Info("applied", "action", entry.Action)
	}
	return entry
}

// ApplyAll applies the objects in declaration order.
// A failed object doesn't prevent the following ones from being applied.
func (rm *ResourceManager) ApplyAll(ctx context.Context, objects []*unstructured.Unstructured, mode ApplyMode) *ChangeSet {
	changeSet := NewChangeSet()
	for _, object := range objects {
		changeSet.Add(rm.Apply(ctx, object, mode))
	}
	return changeSet
}

func (rm *ResourceManager) ensureExists(ctx context.Context, d Descriptor, object *unstructured.Unstructured) ChangeSetEntry {
	get, err := rm.client.Get(ctx, d, object.GetName(), object.GetNamespace())
	if err != nil {
		return rm.failedEntry(object, fmt.Errorf("get failed: %w", err))
	}
	switch get.StatusCode {
	case http.StatusOK:
		return rm.changeSetEntry(object, UnchangedAction)
	case http.StatusNotFound:
	default:
		return rm.failedEntry(object, &StatusError{Method: http.MethodGet, StatusCode: get.StatusCode})
	}

	post, err := rm.client.Post(ctx, d, object)
	if err != nil {
		return rm.failedEntry(object, fmt.Errorf("create failed: %w", err))
	}
	switch {
	case hasStatus(post.StatusCode, http.StatusOK, http.StatusCreated, http.StatusAccepted):
		return rm.changeSetEntry(object, CreatedAction)
	case post.StatusCode == http.StatusConflict:
		return rm.changeSetEntry(object, UnchangedAction)
	default:
		return rm.failedEntry(object, &StatusError{Method: http.MethodPost, StatusCode: post.StatusCode})
	}
}

func (rm *ResourceManager) replace(ctx context.Context, d Descriptor, object *unstructured.Unstructured) ChangeSetEntry {
	get, err := rm.client.Get(ctx, d, object.GetName(), object.GetNamespace())
	if err != nil {
		return rm.failedEntry(object, fmt.Errorf("get failed: %w", err))
	}

	switch get.StatusCode {
	case http.StatusOK:
		updated := object.DeepCopy()
		if get.Object != nil {
			updated.SetResourceVersion(get.Object.GetResourceVersion())
		}
		put, err := rm.client.Put(ctx, d, updated)
		if err != nil {
			return rm.failedEntry(object, fmt.Errorf("update failed: %w", err))
		}
		if !hasStatus(put.StatusCode, http.StatusOK, http.StatusCreated) {
			return rm.failedEntry(object, &StatusError{Method: http.MethodPut, StatusCode: put.StatusCode})
		}
		return rm.changeSetEntry(object, ConfiguredAction)
	case http.StatusNotFound:
		post, err := rm.client.Post(ctx, d, object)
		if err != nil {
			return rm.failedEntry(object, fmt.Errorf("create failed: %w", err))
		}
		if !hasStatus(post.StatusCode, http.StatusOK, http.StatusCreated, http.StatusAccepted) {
			return rm.failedEntry(object, &StatusError{Method: http.MethodPost, StatusCode: post.StatusCode})
		}
		return rm.changeSetEntry(object, CreatedAction)
	default:
		return rm.failedEntry(object, &StatusError{Method: http.MethodGet, StatusCode: get.StatusCode})
	}
}

// rewriteImages replaces the default registry prefix in the
// spec.template.spec.containers images of the given object.
func (rm *ResourceManager) rewriteImages(object *unstructured.Unstructured) error {
	if rm.opts.Registry == "" {
		return nil
	}

	containers, found, err := unstructured.NestedSlice(object.Object, "spec", "template", "spec", "containers")
	if err != nil || !found {
		return nil
	}

	for i, c := range containers {
		container, ok := c.(map[string]interface{})
		if !ok {
			continue
		}
		if image, ok := container["image"].(string); ok {
			container["image"] = strings.Replace(image, DefaultRegistry, rm.opts.Registry, 1)
			containers[i] = container
		}
	}

	if err := unstructured.SetNestedSlice(object.Object, containers, "spec", "template", "spec", "containers"); err != nil {
		return fmt.Errorf("registry rewrite failed: %w", err)
	}
	return nil
}
