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
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"

	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"
	utiljson "k8s.io/apimachinery/pkg/util/json"
	yamlutil "k8s.io/apimachinery/pkg/util/yaml"
	"sigs.k8s.io/yaml"
)

// Parse decodes a YAML or JSON multi-doc into classified nodes, one per document.
// Empty documents are skipped.
func Parse(r io.Reader) ([]Node, error) {
	reader := yamlutil.NewYAMLReader(bufio.NewReader(r))
	nodes := make([]Node, 0)

	for i := 0; ; i++ {
		doc, err := reader.Read()
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return nodes, fmt.Errorf("reading document %d failed: %w", i, err)
		}

		if len(bytes.TrimSpace(doc)) == 0 {
			continue
		}

		data, err := yaml.YAMLToJSON(doc)
		if err != nil {
			return nodes, fmt.Errorf("decoding document %d failed: %w", i, err)
		}

		var raw interface{}
		if err := utiljson.Unmarshal(data, &raw); err != nil {
			return nodes, fmt.Errorf("decoding document %d failed: %w", i, err)
		}
		if raw == nil {
			continue
		}

		node, err := Classify(raw)
		if err != nil {
			return nodes, fmt.Errorf("document %d: %w", i, err)
		}
		nodes = append(nodes, node)
	}

	return nodes, nil
}

// ReadObjects parses the given multi-doc and returns the flattened objects.
func ReadObjects(data []byte) ([]*unstructured.Unstructured, error) {
	nodes, err := Parse(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	return FlattenAll(nodes), nil
}

// IsCustomResourceDefinition reports whether the object is a CRD.
func IsCustomResourceDefinition(object *unstructured.Unstructured) bool {
	return object.GetKind() == "CustomResourceDefinition"
}
