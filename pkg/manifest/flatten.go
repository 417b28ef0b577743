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
	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"
)

// Flatten returns the objects held by the given node tree in declaration order.
func Flatten(node Node) []*unstructured.Unstructured {
	objects := make([]*unstructured.Unstructured, 0)
	return flatten(node, objects)
}

// FlattenAll flattens each node and concatenates the results.
func FlattenAll(nodes []Node) []*unstructured.Unstructured {
	return Flatten(List{Items: nodes})
}

func flatten(node Node, acc []*unstructured.Unstructured) []*unstructured.Unstructured {
	switch n := node.(type) {
	case Leaf:
		if n.Object != nil {
			acc = append(acc, n.Object)
		}
	case List:
		for _, item := range n.Items {
			acc = flatten(item, acc)
		}
	}
	return acc
}
