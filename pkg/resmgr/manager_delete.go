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

	apiextensionsv1 "k8s.io/apiextensions-apiserver/pkg/apis/apiextensions/v1"
	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"
	"k8s.io/apimachinery/pkg/runtime"
	ctrllog "sigs.k8s.io/controller-runtime/pkg/log"

	"github.com/razee-io/razeedeploy-delta/pkg/manifest"
)

var finalizersPatch = []byte(`{"metadata":{"finalizers":null}}`)

// defaultCRDGroup is used for CRDs that don't specify spec.group.
const defaultCRDGroup = "deploy.razee.io"

// Delete removes the object from the cluster. When force is set, the object's
// finalizers are cleared with a merge patch before the delete request.
// An object that is not found is reported as a success.
func (rm *ResourceManager) Delete(ctx context.Context, object *unstructured.Unstructured, force bool) ChangeSetEntry {
	log := ctrllog.FromContext(ctx).WithValues("object", fmt.Sprintf("%s/%s", object.GetKind(), object.GetName()), "force", force)

	d, found, err := rm.client.Describe(ctx, object.GetAPIVersion(), object.GetKind(), VerbDelete)
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

	if force {
		patch, err := rm.client.MergePatch(ctx, d, object.GetName(), object.GetNamespace(), finalizersPatch)
		if err != nil {
			log.Error(err, "finalizers patch failed")
			return rm.failedEntry(object, fmt.Errorf("finalizers patch failed: %w", err))
		}
		switch patch.StatusCode {
		case http.StatusOK:
		case http.StatusNotFound:
			log.V(1).Info("not found")
			return rm.changeSetEntry(object, NotFoundAction)
		default:
			err := &StatusError{Method: http.MethodPatch, StatusCode: patch.StatusCode}
			log.Error(err, "finalizers patch failed")
			return rm.failedEntry(object, err)
		}
	}

	resp, err := rm.client.Delete(ctx, d, object.GetName(), object.GetNamespace())
	if err != nil {
		log.Error(err, "delete failed")
		return rm.failedEntry(object, fmt.Errorf("delete failed: %w", err))
	}
	switch resp.StatusCode {
	case http.StatusOK:
		log.V(1).Info("deleted")
		return rm.changeSetEntry(object, DeletedAction)
	case http.StatusNotFound:
		log.V(1).Info("not found")
		return rm.changeSetEntry(object, NotFoundAction)
	default:
		err := &StatusError{Method: http.MethodDelete, StatusCode: resp.StatusCode}
		log.Error(err, "delete failed")
		return rm.failedEntry(object, err)
	}
}

// DeleteAll deletes the objects in reverse declaration order,
// the last declared object is deleted first.
// A failed object doesn't prevent the preceding ones from being deleted.
func (rm *ResourceManager) DeleteAll(ctx context.Context, objects []*unstructured.Unstructured, force bool) *ChangeSet {
	changeSet := NewChangeSet()
	for i := len(objects) - 1; i >= 0; i-- {
		changeSet.Add(rm.Delete(ctx, objects[i], force))
	}
	return changeSet
}

// RemovalPlan holds a component's objects with its CRD extracted.
type RemovalPlan struct {
	CRD     *unstructured.Unstructured
	Objects []*unstructured.Unstructured
}

// NewRemovalPlan extracts the first CustomResourceDefinition from the objects.
// The remaining objects keep their declaration order.
func NewRemovalPlan(objects []*unstructured.Unstructured) RemovalPlan {
	plan := RemovalPlan{Objects: make([]*unstructured.Unstructured, 0, len(objects))}
	for _, object := range objects {
		if plan.CRD == nil && manifest.IsCustomResourceDefinition(object) {
			plan.CRD = object
			continue
		}
		plan.Objects = append(plan.Objects, object)
	}
	return plan
}

// RemoveComponent deletes the CRD of a component first, then waits for the
// CRD to be removed or, when force is set, strips the finalizers of all its
// custom resources. The remaining objects are deleted in reverse declaration
// order even if the CRD step failed, in which case the CRD error is returned.
func (rm *ResourceManager) RemoveComponent(ctx context.Context, objects []*unstructured.Unstructured, force bool) (*ChangeSet, error) {
	plan := NewRemovalPlan(objects)
	changeSet := NewChangeSet()

	var crdErr error
	if plan.CRD != nil {
		if err := rm.removeCRD(ctx, plan.CRD, force, changeSet); err != nil {
			crdErr = fmt.Errorf("CRD %s cleanup failed: %w", plan.CRD.GetName(), err)
			ctrllog.FromContext(ctx).Error(err, "CRD cleanup failed, use force to remove the custom resources finalizers",
				"crd", plan.CRD.GetName())
		}
	}

	changeSet.AddAll(rm.DeleteAll(ctx, plan.Objects, false).Entries)
	return changeSet, crdErr
}

func (rm *ResourceManager) removeCRD(ctx context.Context, crd *unstructured.Unstructured, force bool, changeSet *ChangeSet) error {
	entry := rm.Delete(ctx, crd, false)
	changeSet.Add(entry)
	if entry.Failed() {
		return entry.Err
	}

	if force {
		return rm.forceDeleteCustomResources(ctx, crd, changeSet)
	}
	return rm.WaitForCRDDeleted(ctx, crd.GetName())
}

// forceDeleteCustomResources lists the custom resources stored under the
// CRD's storage version and force deletes them in reverse order.
func (rm *ResourceManager) forceDeleteCustomResources(ctx context.Context, object *unstructured.Unstructured, changeSet *ChangeSet) error {
	var crd apiextensionsv1.CustomResourceDefinition
	if err := runtime.DefaultUnstructuredConverter.FromUnstructured(object.Object, &crd); err != nil {
		return fmt.Errorf("decoding CRD failed: %w", err)
	}

	group := crd.Spec.Group
	if group == "" {
		group = defaultCRDGroup
	}

	for _, version := range crd.Spec.Versions {
		if !version.Storage {
			continue
		}

		apiVersion := fmt.Sprintf("%s/%s", group, version.Name)
		d, found, err := rm.client.Describe(ctx, apiVersion, crd.Spec.Names.Kind, VerbGet)
		if err != nil {
			return fmt.Errorf("describe failed: %w", err)
		}
		if !found {
			continue
		}

		resp, err := rm.client.List(ctx, d, "")
		if err != nil {
			return fmt.Errorf("listing %s failed: %w", crd.Spec.Names.Kind, err)
		}
		if resp.StatusCode != http.StatusOK {
			return &StatusError{Method: http.MethodGet, StatusCode: resp.StatusCode}
		}
		if resp.List == nil {
			continue
		}

		items := make([]*unstructured.Unstructured, 0, len(resp.List.Items))
		for i := range resp.List.Items {
			item := resp.List.Items[i].DeepCopy()
			if item.GetAPIVersion() == "" {
				item.SetAPIVersion(apiVersion)
			}
			if item.GetKind() == "" {
				item.SetKind(crd.Spec.Names.Kind)
			}
			items = append(items, item)
		}
		changeSet.AddAll(rm.DeleteAll(ctx, items, true).Entries)
	}
	return nil
}
