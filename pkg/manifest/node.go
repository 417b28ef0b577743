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
	"fmt"
	"strings"

	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"
)

// Node is either a Leaf holding a single Kubernetes object
// or a List holding an ordered sequence of nodes.
type Node interface {
	isNode()
}

// Leaf wraps a single manifest document.
type Leaf struct {
	Object *unstructured.Unstructured
}

// List is an ordered group of nodes, e.g. a multi-doc sequence or a 'kind: List' document.
type List struct {
	Items []Node
}

func (Leaf) isNode() {}
func (List) isNode() {}

// Classify turns a decoded YAML/JSON value into a Node.
// A value is a List if it's a sequence, or if it's a mapping whose kind ends
// in 'List' (case-insensitive) and whose items field is a sequence.
// Every other mapping is a Leaf.
func Classify(raw interface{}) (Node, error) {
	switch v := raw.(type) {
	case []interface{}:
		return classifyItems(v)
	case map[string]interface{}:
		kind, _, _ := unstructured.NestedString(v, "kind")
		if items, ok := v["items"].([]interface{}); ok && strings.HasSuffix(strings.ToLower(kind), "list") {
			return classifyItems(items)
		}
		return Leaf{Object: &unstructured.Unstructured{Object: v}}, nil
	default:
		return nil, fmt.Errorf("unsupported manifest document of type %T", raw)
	}
}

func classifyItems(items []interface{}) (Node, error) {
	list := List{Items: make([]Node, 0, len(items))}
	for i, item := range items {
		if item == nil {
			continue
		}
		n, err := Classify(item)
		if err != nil {
			return nil, fmt.Errorf("item %d: %w", i, err)
		}
		list.Items = append(list.Items, n)
	}
	return list, nil
}

// NewList returns a List node holding the given objects in order.
func NewList(objects ...*unstructured.Unstructured) List {
	list := List{Items: make([]Node, 0, len(objects))}
	for _, object := range objects {
		list.Items = append(list.Items, Leaf{Object: object})
	}
	return list
}
