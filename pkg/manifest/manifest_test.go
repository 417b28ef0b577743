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

package manifest

import (
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	. "github.com/onsi/gomega"
	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"
)

const nestedManifest = `
apiVersion: v1
kind: Namespace
metadata:
  name: razeedeploy
---
apiVersion: v1
kind: List
metadata:
  name: outer
items:
  - apiVersion: v1
    kind: ServiceAccount
    metadata:
      name: sa
  - apiVersion: v1
    kind: ConfigMapList
    items:
      - apiVersion: v1
        kind: ConfigMap
        metadata:
          name: cm-1
      - apiVersion: v1
        kind: ConfigMap
        metadata:
          name: cm-2
  - apiVersion: rbac.authorization.k8s.io/v1
    kind: ClusterRole
    metadata:
      name: role
---
- apiVersion: apps/v1
  kind: Deployment
  metadata:
    name: deploy
- - apiVersion: v1
    kind: Service
    metadata:
      name: svc
---
`

func names(objects []*unstructured.Unstructured) []string {
	var result []string
	for _, object := range objects {
		result = append(result, object.GetKind()+"/"+object.GetName())
	}
	return result
}

func TestParseAndFlatten(t *testing.T) {
	nodes, err := Parse(strings.NewReader(nestedManifest))
	if err != nil {
		t.Fatal(err)
	}

	if len(nodes) != 3 {
		t.Fatalf("expected 3 documents, got %d", len(nodes))
	}

	expected := []string{
		"Namespace/razeedeploy",
		"ServiceAccount/sa",
		"ConfigMap/cm-1",
		"ConfigMap/cm-2",
		"ClusterRole/role",
		"Deployment/deploy",
		"Service/svc",
	}

	if diff := cmp.Diff(expected, names(FlattenAll(nodes))); diff != "" {
		t.Errorf("Mismatch from expected value (-want +got):\n%s", diff)
	}
}

func TestFlattenIsIdempotent(t *testing.T) {
	g := NewWithT(t)

	nodes, err := Parse(strings.NewReader(nestedManifest))
	g.Expect(err).NotTo(HaveOccurred())

	once := FlattenAll(nodes)
	twice := Flatten(NewList(once...))

	g.Expect(names(twice)).To(Equal(names(once)))
	for i := range once {
		g.Expect(twice[i]).To(BeIdenticalTo(once[i]))
	}
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name   string
		raw    interface{}
		isList bool
		leaves int
	}{
		{
			name:   "sequence",
			raw:    []interface{}{map[string]interface{}{"kind": "ConfigMap"}},
			isList: true,
			leaves: 1,
		},
		{
			name: "kind List with items",
			raw: map[string]interface{}{
				"kind":  "List",
				"items": []interface{}{map[string]interface{}{"kind": "Secret"}, map[string]interface{}{"kind": "Secret"}},
			},
			isList: true,
			leaves: 2,
		},
		{
			name: "kind ending in list is case-insensitive",
			raw: map[string]interface{}{
				"kind":  "deploymentLIST",
				"items": []interface{}{map[string]interface{}{"kind": "Deployment"}},
			},
			isList: true,
			leaves: 1,
		},
		{
			name:   "kind List without items is a leaf",
			raw:    map[string]interface{}{"kind": "List"},
			isList: false,
			leaves: 1,
		},
		{
			name: "items on a non-list kind is a leaf",
			raw: map[string]interface{}{
				"kind":  "Widget",
				"items": []interface{}{map[string]interface{}{"kind": "Secret"}},
			},
			isList: false,
			leaves: 1,
		},
		{
			name: "missing kind is a leaf",
			raw: map[string]interface{}{
				"items": []interface{}{map[string]interface{}{"kind": "Secret"}},
			},
			isList: false,
			leaves: 1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := NewWithT(t)
			node, err := Classify(tt.raw)
			g.Expect(err).NotTo(HaveOccurred())

			_, isList := node.(List)
			g.Expect(isList).To(Equal(tt.isList))
			g.Expect(Flatten(node)).To(HaveLen(tt.leaves))
		})
	}
}

func TestClassifyRejectsScalars(t *testing.T) {
	g := NewWithT(t)

	_, err := Classify("just a string")
	g.Expect(err).To(HaveOccurred())

	_, err = Parse(strings.NewReader("---\n42\n"))
	g.Expect(err).To(HaveOccurred())
}

func TestParseKeepsIntegers(t *testing.T) {
	g := NewWithT(t)

	objects, err := ReadObjects([]byte(`
apiVersion: apps/v1
kind: Deployment
metadata:
  name: podinfo
spec:
  replicas: 2
`))
	g.Expect(err).NotTo(HaveOccurred())
	g.Expect(objects).To(HaveLen(1))

	replicas, found, err := unstructured.NestedInt64(objects[0].Object, "spec", "replicas")
	g.Expect(err).NotTo(HaveOccurred())
	g.Expect(found).To(BeTrue())
	g.Expect(replicas).To(Equal(int64(2)))
}
