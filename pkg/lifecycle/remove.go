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
	"strings"
	"time"

	"github.com/fluxcd/pkg/ssa"
	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"
	ctrllog "sigs.k8s.io/controller-runtime/pkg/log"

	"github.com/razee-io/razeedeploy-delta/pkg/components"
	"github.com/razee-io/razeedeploy-delta/pkg/migrate"
	"github.com/razee-io/razeedeploy-delta/pkg/orphans"
	"github.com/razee-io/razeedeploy-delta/pkg/resmgr"
	"github.com/razee-io/razeedeploy-delta/pkg/source"
	"github.com/razee-io/razeedeploy-delta/pkg/templates"
)

// RemoveOptions holds the settings of a remove run.
type RemoveOptions struct {
	Selection *components.Selection
	// Force strips the finalizers of the components' custom resources.
	Force           bool
	DeleteNamespace bool
	Wait            bool
	WaitTimeout     time.Duration
}

// Remover deletes the selected components and their auxiliary objects.
type Remover struct {
	rm     *resmgr.ResourceManager
	source source.Source
	waiter Waiter
}

// NewRemover returns a Remover. The waiter is optional.
func NewRemover(rm *resmgr.ResourceManager, src source.Source, waiter Waiter) *Remover {
	return &Remover{rm: rm, source: src, waiter: waiter}
}

// Run removes the selection, then the orphaned auxiliary objects and the
// prerequisites. Prerequisite failures are tolerated.
func (r *Remover) Run(ctx context.Context, opts RemoveOptions) *Result {
	log := ctrllog.FromContext(ctx)
	result := newResult()
	sel := opts.Selection
	if sel == nil {
		sel = components.NewSelection(nil)
	}

	migrator := migrate.NewMigrator(r.rm)
	migrator.Purge(ctx, sel)
	result.Record(migrator.Run(ctx, migrate.Options{Force: opts.Force}))

	sweeper := orphans.NewSweeper(r.rm, templates.Values{})

	var removed []*unstructured.Unstructured
	for _, c := range sel.Components() {
		log.Info("removing component", "component", c.Name)

		result.Fold(sweeper.Remove(ctx, orphans.BeforeComponent, c.Name, sel))

		objects, err := fetchObjects(ctx, r.source, c, sel.Version(c.Name))
		if err != nil {
			log.Error(err, "skipping component", "component", c.Name)
			result.Fail(err)
			continue
		}

		changeSet, err := r.rm.RemoveComponent(ctx, objects, opts.Force)
		result.Fold(changeSet)
		if err != nil {
			result.Fail(fmt.Errorf("%s: %w", c.Name, err))
		}
		removed = append(removed, objects...)
	}

	log.Info("removing orphans")
	result.Fold(sweeper.Remove(ctx, orphans.AfterComponents, "", sel))

	log.Info("removing prerequisites")
	result.Record(r.removePrereqs(ctx, opts.DeleteNamespace))

	if opts.Wait && r.waiter != nil && len(removed) > 0 {
		log.Info("waiting for resources to be terminated")
		waitOpts := ssa.DefaultWaitOptions()
		if opts.WaitTimeout > 0 {
			waitOpts.Timeout = opts.WaitTimeout
		}
		if err := r.waiter.WaitForTermination(removed, waitOpts); err != nil {
			result.Fail(fmt.Errorf("waiting for termination failed: %w", err))
		}
	}

	return result
}

// removePrereqs deletes the prerequisites in reverse order. The namespace
// is kept unless deleteNamespace is set.
func (r *Remover) removePrereqs(ctx context.Context, deleteNamespace bool) *resmgr.ChangeSet {
	objects, err := templates.Objects(templates.PreReqs, templates.Values{Namespace: r.rm.Namespace()})
	if err != nil {
		cs := resmgr.NewChangeSet()
		cs.Add(resmgr.ChangeSetEntry{Subject: templates.PreReqs, Action: resmgr.FailedAction, Err: err})
		return cs
	}

	keep := objects[:0]
	for _, object := range objects {
		if strings.EqualFold(object.GetKind(), "Namespace") && !deleteNamespace {
			ctrllog.FromContext(ctx).Info("skipping namespace deletion", "namespace", object.GetName())
			continue
		}
		keep = append(keep, object)
	}

	changeSet := r.rm.DeleteAll(ctx, keep, false)
	for _, e := range changeSet.Failures() {
		ctrllog.FromContext(ctx).Error(e.Err, "prerequisite removal failed", "object", e.Subject)
	}
	return changeSet
}
