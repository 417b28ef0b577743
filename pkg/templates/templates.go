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

// Package templates renders the auxiliary manifests that razeedeploy
// manages next to the components: prerequisites, identity and
// watch-keeper configuration, webhook certificates and auto-update.
package templates

import (
	"bytes"
	"embed"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"sort"
	"text/template"

	"github.com/Masterminds/sprig/v3"
	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"

	"github.com/razee-io/razeedeploy-delta/pkg/manifest"
)

const (
	PreReqs       = "preReqs"
	RazeeConfig   = "razeeConfig"
	RidConfig     = "ridConfig"
	WkConfig      = "wkConfig"
	WebhookSecret = "webhookSecret"
	WebhookConfig = "webhookConfig"
	AutoUpdateRR  = "autoUpdateRR"
)

//go:embed manifests/*.yaml
var manifests embed.FS

// NameValue is a cluster metadata entry.
type NameValue struct {
	Name  string
	Value string
}

// WebhookCert holds the base64 encoded PEM blocks of the impersonation webhook.
type WebhookCert struct {
	CA   string
	Cert string
	Key  string
}

// Values are the inputs of the templates.
type Values struct {
	Namespace string

	// RazeedashAPI is the Razee API base URL stored in the razee-identity config.
	RazeedashAPI string
	// RazeedashURL is the URL watch-keeper reports to.
	RazeedashURL string
	ClusterID    string
	// OrgKey is the plain text org key, it's base64 encoded in the razee-identity secret.
	OrgKey          string
	ClusterMetadata []NameValue

	Webhook WebhookCert

	// AutoUpdateURLs are the manifest URLs kept up to date by the auto-update RemoteResource.
	AutoUpdateURLs []string
}

// Render executes the named template with the given values.
func Render(name string, values Values) ([]byte, error) {
	data, err := manifests.ReadFile(fmt.Sprintf("manifests/%s.yaml", name))
	if err != nil {
		return nil, fmt.Errorf("template %s not found", name)
	}

	tpl, err := template.New(name).Option("missingkey=error").Funcs(sprig.TxtFuncMap()).Parse(string(data))
	if err != nil {
		return nil, fmt.Errorf("parsing template %s failed: %w", name, err)
	}

	var buf bytes.Buffer
	if err := tpl.Execute(&buf, values); err != nil {
		return nil, fmt.Errorf("rendering template %s failed: %w", name, err)
	}
	return buf.Bytes(), nil
}

// Objects renders the named template and returns its flattened objects in declaration order.
func Objects(name string, values Values) ([]*unstructured.Unstructured, error) {
	data, err := Render(name, values)
	if err != nil {
		return nil, err
	}
	objects, err := manifest.ReadObjects(data)
	if err != nil {
		return nil, fmt.Errorf("decoding template %s failed: %w", name, err)
	}
	return objects, nil
}

// ParseClusterMetadata decodes a base64 encoded JSON object into name/value pairs sorted by name.
// Values that are not strings are stored as JSON.
func ParseClusterMetadata(encoded string) ([]NameValue, error) {
	if encoded == "" {
		return nil, nil
	}

	data, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("decoding cluster metadata failed: %w", err)
	}

	decoder := json.NewDecoder(bytes.NewReader(data))
	decoder.UseNumber()
	var values map[string]interface{}
	if err := decoder.Decode(&values); err != nil {
		return nil, fmt.Errorf("parsing cluster metadata failed: %w", err)
	}

	names := make([]string, 0, len(values))
	for name := range values {
		names = append(names, name)
	}
	sort.Strings(names)

	metadata := make([]NameValue, 0, len(values))
	for _, name := range names {
		var value string
		switch v := values[name].(type) {
		case string:
			value = v
		case json.Number:
			value = v.String()
		case bool:
			value = fmt.Sprint(v)
		default:
			b, err := json.Marshal(v)
			if err != nil {
				return nil, fmt.Errorf("encoding cluster metadata %s failed: %w", name, err)
			}
			value = string(b)
		}
		metadata = append(metadata, NameValue{Name: name, Value: value})
	}
	return metadata, nil
}
