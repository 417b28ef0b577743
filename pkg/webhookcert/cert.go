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

// Package webhookcert provides the TLS certificate of the impersonation webhook,
// either decoded from user input or generated as a self-signed chain.
package webhookcert

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"text/template"

	"github.com/Masterminds/sprig/v3"
	ctrllog "sigs.k8s.io/controller-runtime/pkg/log"

	"github.com/razee-io/razeedeploy-delta/pkg/templates"
)

// ServiceName is the name of the impersonation webhook service.
const ServiceName = "impersonation-webhook"

// validityDays is the lifetime of generated certificates.
const validityDays = 3650

// ErrIncomplete is returned when the server certificate or key is missing.
var ErrIncomplete = errors.New("server certificate or server key is missing")

// Cert holds the base64 encoded PEM blocks of the webhook certificate.
type Cert struct {
	CA     string `json:"ca,omitempty"`
	Server string `json:"server"`
	Key    string `json:"key"`
}

// Values returns the certificate in the shape expected by the webhook templates.
func (c *Cert) Values() templates.WebhookCert {
	return templates.WebhookCert{
		CA:   c.CA,
		Cert: c.Server,
		Key:  c.Key,
	}
}

// Parse decodes a base64 encoded JSON object with the 'ca', 'server' and 'key' fields.
// When the CA is missing, the server certificate is used as CA.
func Parse(encoded string) (*Cert, error) {
	data, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("decoding webhook certificate failed: %w", err)
	}

	var cert Cert
	if err := json.Unmarshal(data, &cert); err != nil {
		return nil, fmt.Errorf("parsing webhook certificate failed: %w", err)
	}
	if cert.Server == "" || cert.Key == "" {
		return nil, ErrIncomplete
	}
	if cert.CA == "" {
		cert.CA = cert.Server
	}
	return &cert, nil
}

const chainTemplate = `{{- $ca := genCA .CAName .Days -}}
{{- $cert := genSignedCert .CommonName nil (list .CommonName) .Days $ca -}}
{{ $ca.Cert | b64enc }}
{{ $cert.Cert | b64enc }}
{{ $cert.Key | b64enc }}`

// Generate creates a CA and a server certificate for the webhook service in the given namespace.
func Generate(namespace string) (*Cert, error) {
	commonName := fmt.Sprintf("%s.%s.svc", ServiceName, namespace)

	tpl, err := template.New("cert").Funcs(sprig.TxtFuncMap()).Parse(chainTemplate)
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	err = tpl.Execute(&buf, map[string]interface{}{
		"CAName":     fmt.Sprintf("%s-ca", ServiceName),
		"CommonName": commonName,
		"Days":       validityDays,
	})
	if err != nil {
		return nil, fmt.Errorf("generating webhook certificate failed: %w", err)
	}

	blocks := strings.Fields(buf.String())
	if len(blocks) != 3 {
		return nil, fmt.Errorf("generating webhook certificate failed: expected 3 PEM blocks, got %d", len(blocks))
	}

	return &Cert{
		CA:     blocks[0],
		Server: blocks[1],
		Key:    blocks[2],
	}, nil
}

// Resolve returns the user provided certificate, or a generated one
// if none was provided or it can't be decoded.
func Resolve(ctx context.Context, encoded, namespace string) (*Cert, error) {
	log := ctrllog.FromContext(ctx)

	if encoded != "" {
		cert, err := Parse(encoded)
		if err == nil {
			return cert, nil
		}
		log.Info("invalid webhook certificate, generating a self-signed one", "error", err.Error())
	}

	return Generate(namespace)
}
