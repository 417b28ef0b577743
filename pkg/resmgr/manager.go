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
	"fmt"
	"net/http"
	"strings"
	"time"

	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"

	"github.com/razee-io/razeedeploy-delta/pkg/backoff"
	"github.com/razee-io/razeedeploy-delta/pkg/objectutil"
)

// DefaultRegistry is the image registry prefix rewritten by Options.Registry.
const DefaultRegistry = "quay.io/razee/"

// Options holds the settings of a ResourceManager.
type Options struct {
	// Namespace is assigned to namespaced objects that don't specify one.
	Namespace string

	// Registry replaces DefaultRegistry in the container images of workloads.
	Registry string

	// RemovalAttempts and RemovalTimeout seed the CRD removal confirmation.
	RemovalAttempts int
	RemovalTimeout  time.Duration

	// RegistrationAttempts and RegistrationDelay seed the CRD registration confirmation.
	RegistrationAttempts int
	RegistrationDelay    time.Duration

	// Sleep overrides the delay function of the backoff pollers.
	Sleep backoff.SleepFunc
}

// ResourceManager applies and deletes Kubernetes objects through a ResourceClient.
type ResourceManager struct {
	client ResourceClient
	opts   Options
}

// NewResourceManager creates a ResourceManager for the given client and options.
func NewResourceManager(client ResourceClient, opts Options) *ResourceManager {
	if opts.Registry != "" && !strings.HasSuffix(opts.Registry, "/") {
		opts.Registry += "/"
	}
	return &ResourceManager{
		client: client,
		opts:   opts,
	}
}

// Namespace returns the default namespace.
func (rm *ResourceManager) Namespace() string {
	return rm.opts.Namespace
}

func (rm *ResourceManager) defaultNamespace(d Descriptor, object *unstructured.Unstructured) {
	if d.Namespaced && object.GetNamespace() == "" {
		object.SetNamespace(rm.opts.Namespace)
	}
}

func (rm *ResourceManager) changeSetEntry(object *unstructured.Unstructured, action Action) ChangeSetEntry {
	return ChangeSetEntry{
		Subject: objectutil.FmtUnstructured(object),
		Action:  action,
	}
}

func (rm *ResourceManager) failedEntry(object *unstructured.Unstructured, err error) ChangeSetEntry {
	return ChangeSetEntry{
		Subject: objectutil.FmtUnstructured(object),
		Action:  FailedAction,
		Err:     err,
	}
}

// StatusError is returned for API responses with an unexpected status code.
type StatusError struct {
	Method     string
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s returned %d %s", e.Method, e.StatusCode, http.StatusText(e.StatusCode))
}

func hasStatus(code int, expected ...int) bool {
	for _, e := range expected {
		if code == e {
			return true
		}
	}
	return false
}
