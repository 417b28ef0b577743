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
	"time"

	ctrllog "sigs.k8s.io/controller-runtime/pkg/log"

	"github.com/razee-io/razeedeploy-delta/pkg/backoff"
)

var crdAPIVersions = []string{"apiextensions.k8s.io/v1", "apiextensions.k8s.io/v1beta1"}

// WaitForCRDDeleted polls the cluster until the named CRD is gone.
// The delay between checks starts at RemovalTimeout / 2^(RemovalAttempts-1)
// and doubles after every check.
func (rm *ResourceManager) WaitForCRDDeleted(ctx context.Context, name string) error {
	log := ctrllog.FromContext(ctx).WithValues("crd", name)

	d, err := rm.describeCRD(ctx)
	if err != nil {
		return err
	}

	poller := backoff.ForTimeout(rm.opts.RemovalAttempts, rm.opts.RemovalTimeout)
	poller.Sleep = rm.opts.Sleep
	poller.OnRetry = func(attemptsRemaining int, delay time.Duration) {
		log.Info("CRD not fully removed", "recheckIn", delay.String(), "attemptsRemaining", attemptsRemaining)
	}
	log.V(1).Info("waiting for CRD removal", "schedule", fmt.Sprint(poller.Delays()))

	err = poller.Poll(ctx, func(ctx context.Context) (bool, error) {
		resp, err := rm.client.Get(ctx, d, name, "")
		if err != nil {
			return false, err
		}
		return resp.StatusCode == http.StatusNotFound, nil
	})
	if err != nil {
		return err
	}

	log.Info("CRD deleted")
	return nil
}

// WaitForCRDRegistered polls the cluster until the given kind is served.
func (rm *ResourceManager) WaitForCRDRegistered(ctx context.Context, apiVersion, kind string) error {
	log := ctrllog.FromContext(ctx).WithValues("apiVersion", apiVersion, "kind", kind)

	poller := backoff.New(rm.opts.RegistrationAttempts, rm.opts.RegistrationDelay)
	poller.Sleep = rm.opts.Sleep
	poller.OnRetry = func(attemptsRemaining int, delay time.Duration) {
		log.Info("CRD not yet registered", "recheckIn", delay.String(), "attemptsRemaining", attemptsRemaining)
	}

	err := poller.Poll(ctx, func(ctx context.Context) (bool, error) {
		_, found, err := rm.client.Describe(ctx, apiVersion, kind, VerbGet)
		return found, err
	})
	if err != nil {
		return fmt.Errorf("%s %s not registered: %w", apiVersion, kind, err)
	}
	return nil
}

func (rm *ResourceManager) describeCRD(ctx context.Context) (Descriptor, error) {
	for _, apiVersion := range crdAPIVersions {
		d, found, err := rm.client.Describe(ctx, apiVersion, "CustomResourceDefinition", VerbGet)
		if err != nil {
			return Descriptor{}, fmt.Errorf("describe failed: %w", err)
		}
		if found {
			return d, nil
		}
	}
	return Descriptor{}, fmt.Errorf("CustomResourceDefinition API not found")
}
