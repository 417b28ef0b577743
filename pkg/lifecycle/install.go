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

package lifecycle

import (
	"context"
	"fmt"
	"time"

	"github.com/fluxcd/pkg/ssa"
	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"
	ctrllog "sigs.k8s.io/controller-runtime/pkg/log"

	"github.com/razee-io/razeedeploy-delta/pkg/components"
	"github.com/razee-io/razeedeploy-delta/pkg/manifest"
	"github.com/razee-io/razeedeploy-delta/pkg/migrate"
	"github.com/razee-io/razeedeploy-delta/pkg/objectutil"
	"github.com/razee-io/razeedeploy-delta/pkg/orphans"
	"github.com/razee-io/razeedeploy-delta/pkg/resmgr"
	"github.com/razee-io/razeedeploy-delta/pkg/source"
	"github.com/razee-io/razeedeploy-delta/pkg/templates"
	"github.com/razee-io/razeedeploy-delta/pkg/webhookcert"
)

const (
	remoteResourceAPIVersion = "deploy.razee.io/v1alpha2"
	remoteResourceKind       = "RemoteResource"
)

// Waiter waits for objects to become ready or to be terminated.
// It's implemented by the fluxcd ssa.ResourceManager.
type Waiter interface {
	Wait(objects []*unstructured.Unstructured, opts ssa.WaitOptions) error
	WaitForTermination(objects []*unstructured.Unstructured, opts ssa.WaitOptions) error
}

// InstallOptions holds the settings of an install run.
type InstallOptions struct {
	Selection *components.Selection
	// Mode is used for the prerequisites and auxiliary objects,
	// component manifests are always replaced.
	Mode       resmgr.ApplyMode
	AutoUpdate bool
	Identity   Identity
	// WebhookCert is the base64 encoded JSON certificate of the impersonation webhook.
	WebhookCert string
	Wait        bool
	WaitTimeout time.Duration
}

// Installer applies the selected components and their auxiliary objects.
type Installer struct {
	rm     *resmgr.ResourceManager
	source source.Source
	waiter Waiter
}

// NewInstaller returns an Installer. The waiter is optional.
func NewInstaller(rm *resmgr.ResourceManager, src source.Source, waiter Waiter) *Installer {
	return &Installer{rm: rm, source: src, waiter: waiter}
}

// Run installs the selection. Failures don't stop the run, they are
// collected in the result.
func (in *Installer) Run(ctx context.Context, opts InstallOptions) *Result {
	log := ctrllog.FromContext(ctx)
	result := newResult()
	sel := opts.Selection
	if sel == nil {
		sel = components.NewSelection(nil)
	}

	migrator := migrate.NewMigrator(in.rm)
	migrator.Purge(ctx, sel)
	result.Record(migrator.Run(ctx, migrate.Options{}))

	values := opts.Identity.Values(ctx)
	values.Namespace = in.rm.Namespace()

	log.Info("installing prerequisites")
	for _, name := range []string{templates.PreReqs, templates.RazeeConfig} {
		in.applyTemplate(ctx, name, values, opts.Mode, result)
	}

	if sel.Has(components.ImpersonationWebhook) {
		cert, err := webhookcert.Resolve(ctx, opts.WebhookCert, values.Namespace)
		if err != nil {
			result.Fail(err)
		} else {
			values.Webhook = cert.Values()
		}
	}

	if (sel.Has(components.WatchKeeper) || sel.Has(components.ClusterSubscription)) && !opts.Identity.Configured() {
		log.Info("razeedash url or org key not set, razee-identity is created from a template")
	}

	sweeper := orphans.NewSweeper(in.rm, values)
	result.Fold(sweeper.Install(ctx, orphans.BeforeComponents, "", sel, opts.Mode))

	var installed []*unstructured.Unstructured
	var autoUpdateURLs []string
	for _, c := range sel.Components() {
		if c.Requires != "" && !sel.Has(c.Requires) {
			log.Info("skipping component, its dependency must be installed with it", "component", c.Name, "requires", c.Requires)
			continue
		}

		version := sel.Version(c.Name)
		log.Info("installing component", "component", c.Name, "version", version)

		result.Fold(sweeper.Install(ctx, orphans.BeforeComponent, c.Name, sel, opts.Mode))

		objects, err := in.fetch(ctx, c, version)
		if err != nil {
			log.Error(err, "skipping component", "component", c.Name)
			result.Fail(err)
			continue
		}
		result.Fold(in.rm.ApplyAll(ctx, objects, resmgr.Replace))
		installed = append(installed, objects...)

		result.Fold(sweeper.Install(ctx, orphans.AfterComponent, c.Name, sel, opts.Mode))

		if opts.AutoUpdate {
			if locator, ok := in.source.(source.LatestLocator); ok {
				autoUpdateURLs = append(autoUpdateURLs, locator.LatestURL(c))
			} else {
				log.Info("source has no latest URL, component is not auto-updated", "component", c.Name)
			}
		}
	}

	if opts.AutoUpdate {
		in.autoUpdate(ctx, sel, values, autoUpdateURLs, result)
	}

	if opts.Wait && in.waiter != nil && len(installed) > 0 {
		log.Info("waiting for resources to become ready")
		waitOpts := ssa.DefaultWaitOptions()
		if opts.WaitTimeout > 0 {
			waitOpts.Timeout = opts.WaitTimeout
		}
		if err := in.waiter.Wait(installed, waitOpts); err != nil {
			result.Fail(fmt.Errorf("waiting for readiness failed: %w", err))
		}
	}

	return result
}

func (in *Installer) autoUpdate(ctx context.Context, sel *components.Selection, values templates.Values, urls []string, result *Result) {
	log := ctrllog.FromContext(ctx)
	if !sel.Has(components.RemoteResource) {
		log.Info("RemoteResource must be installed to use auto-update, skipping auto-update")
		return
	}

	log.Info("installing auto-update RemoteResource")
	if err := in.rm.WaitForCRDRegistered(ctx, remoteResourceAPIVersion, remoteResourceKind); err != nil {
		log.Error(err, "skipping auto-update")
		result.Fail(fmt.Errorf("auto-update failed: %w", err))
		return
	}

	values.AutoUpdateURLs = urls
	in.applyTemplate(ctx, templates.AutoUpdateRR, values, resmgr.Replace, result)
}

func (in *Installer) applyTemplate(ctx context.Context, name string, values templates.Values, mode resmgr.ApplyMode, result *Result) {
	objects, err := templates.Objects(name, values)
	if err != nil {
		result.Fail(err)
		return
	}
	result.Fold(in.rm.ApplyAll(ctx, objects, mode))
}

func (in *Installer) fetch(ctx context.Context, c components.Component, version string) ([]*unstructured.Unstructured, error) {
	return fetchObjects(ctx, in.source, c, version)
}

func fetchObjects(ctx context.Context, src source.Source, c components.Component, version string) ([]*unstructured.Unstructured, error) {
	data, err := src.Fetch(ctx, c, version)
	if err != nil {
		return nil, fmt.Errorf("%s manifests download failed: %w", c.Name, err)
	}
	objects, err := manifest.ReadObjects(data)
	if err != nil {
		return nil, fmt.Errorf("%s manifests decode failed: %w", c.Name, err)
	}
	ctrllog.FromContext(ctx).V(1).Info("manifests decoded", "component", c.Name, "objects", objectutil.FmtUnstructuredList(objects))
	return objects, nil
}
