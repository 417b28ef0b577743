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

package main

import (
	"fmt"
	"time"

	"github.com/fluxcd/pkg/ssa"

	"github.com/razee-io/razeedeploy-delta/pkg/kube"
	"github.com/razee-io/razeedeploy-delta/pkg/lifecycle"
	"github.com/razee-io/razeedeploy-delta/pkg/registry"
	"github.com/razee-io/razeedeploy-delta/pkg/resmgr"
	"github.com/razee-io/razeedeploy-delta/pkg/source"
)

var waitOwner = ssa.Owner{
	Field: PROJECT,
	Group: "deploy.razee.io",
}

// newResourceClient and newWaiter are replaced in tests.
var (
	newResourceClient = func() (resmgr.ResourceClient, error) {
		kubeConfig, err := kube.NewConfig(kubeconfigArgs)
		if err != nil {
			return nil, err
		}
		return kube.NewClientForConfig(kubeConfig)
	}

	newWaiter = func() (lifecycle.Waiter, error) {
		kubeConfig, err := kube.NewConfig(kubeconfigArgs)
		if err != nil {
			return nil, err
		}

		kubeClient, err := kube.NewKubeClient(kubeConfig)
		if err != nil {
			return nil, err
		}

		statusPoller, err := kube.NewStatusPoller(kubeConfig)
		if err != nil {
			return nil, fmt.Errorf("status poller init failed: %w", err)
		}

		return ssa.NewResourceManager(kubeClient, statusPoller, waitOwner), nil
	}
)

type managerFlags struct {
	registry        string
	removalAttempts int
	removalTimeout  int
}

func newResourceManager(flags managerFlags) (*resmgr.ResourceManager, error) {
	client, err := newResourceClient()
	if err != nil {
		return nil, fmt.Errorf("client init failed: %w", err)
	}

	opts := resmgr.Options{
		Namespace:            *kubeconfigArgs.Namespace,
		Registry:             cfg.Registry,
		RemovalAttempts:      cfg.Removal.Attempts,
		RemovalTimeout:       cfg.Removal.Timeout(),
		RegistrationAttempts: cfg.Registration.Attempts,
		RegistrationDelay:    cfg.Registration.InitialDelay.Duration,
	}
	if flags.registry != "" {
		opts.Registry = flags.registry
	}
	if flags.removalAttempts > 0 {
		opts.RemovalAttempts = flags.removalAttempts
	}
	if flags.removalTimeout > 0 {
		opts.RemovalTimeout = time.Duration(flags.removalTimeout) * time.Minute
	}

	return resmgr.NewResourceManager(client, opts), nil
}

func newOptionalWaiter(wait bool) (lifecycle.Waiter, error) {
	if !wait {
		return nil, nil
	}
	waiter, err := newWaiter()
	if err != nil {
		return nil, fmt.Errorf("waiter init failed: %w", err)
	}
	return waiter, nil
}

func newSource(flags sourceFlags) (source.Source, error) {
	fileSource := flags.fileSource
	if fileSource == "" {
		fileSource = cfg.FileSource
	}
	filePath := flags.filePath
	if filePath == "" {
		filePath = cfg.FilePath
	}

	identities, err := registry.LoadIdentities(flags.ageIdentities)
	if err != nil {
		return nil, err
	}

	return source.New(fileSource, source.Options{
		FilePath:   filePath,
		Identities: identities,
	})
}
