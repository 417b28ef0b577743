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

// Package orphans applies and removes the auxiliary objects that belong to
// one or more components but are not part of the components' manifests.
package orphans

import (
	"context"

	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"
	ctrllog "sigs.k8s.io/controller-runtime/pkg/log"

	"github.com/razee-io/razeedeploy-delta/pkg/components"
	"github.com/razee-io/razeedeploy-delta/pkg/resmgr"
	"github.com/razee-io/razeedeploy-delta/pkg/templates"
)

// Stage is a point of an install or remove run.
type Stage int

const (
	// BeforeComponents runs once, before the first component.
	BeforeComponents Stage = iota
	// BeforeComponent runs before each owner component.
	BeforeComponent
	// AfterComponent runs after each owner component.
	AfterComponent
	// AfterComponents runs once, after the last component.
	AfterComponents
)

// Rule binds an auxiliary template to its owner components.
type Rule struct {
	Template string
	Owners   []string
	// Shared objects are removed only when every owner is removed.
	Shared       bool
	InstallStage Stage
	RemoveStage  Stage
}

var rules = []Rule{
	{
		Template:     templates.RidConfig,
		Owners:       []string{components.WatchKeeper, components.ClusterSubscription},
		Shared:       true,
		InstallStage: BeforeComponents,
		RemoveStage:  AfterComponents,
	},
	{
		Template:     templates.WkConfig,
		Owners:       []string{components.WatchKeeper},
		InstallStage: BeforeComponent,
		RemoveStage:  BeforeComponent,
	},
	{
		Template:     templates.WebhookSecret,
		Owners:       []string{components.ImpersonationWebhook},
		InstallStage: BeforeComponent,
		RemoveStage:  AfterComponents,
	},
	{
		Template:     templates.WebhookConfig,
		Owners:       []string{components.ImpersonationWebhook},
		InstallStage: AfterComponent,
		RemoveStage:  BeforeComponent,
	},
}

// Rules returns a copy of the ownership rules.
func Rules() []Rule {
	out := make([]Rule, len(rules))
	copy(out, rules)
	return out
}

func (r Rule) ownedBy(component string) bool {
	for _, owner := range r.Owners {
		if owner == component {
			return true
		}
	}
	return false
}

func (r Rule) anyOwner(selection *components.Selection) bool {
	for _, owner := range r.Owners {
		if selection.Has(owner) {
			return true
		}
	}
	return false
}

func (r Rule) allOwners(selection *components.Selection) bool {
	for _, owner := range r.Owners {
		if !selection.Has(owner) {
			return false
		}
	}
	return true
}

// Sweeper renders the auxiliary templates and applies or deletes them
// at the stages defined by the rules.
type Sweeper struct {
	rm     *resmgr.ResourceManager
	values templates.Values
	rules  []Rule
}

// NewSweeper returns a Sweeper rendering the templates with the given values.
func NewSweeper(rm *resmgr.ResourceManager, values templates.Values) *Sweeper {
	return &Sweeper{
		rm:     rm,
		values: values,
		rules:  Rules(),
	}
}

// Install applies the objects due at the stage. For the per component
// stages component names the component being installed.
func (s *Sweeper) Install(ctx context.Context, stage Stage, component string, selection *components.Selection, mode resmgr.ApplyMode) *resmgr.ChangeSet {
	changeSet := resmgr.NewChangeSet()
	for _, r := range s.rules {
		if r.InstallStage != stage || !s.matches(r, stage, component, selection, false) {
			continue
		}
		objects, err := s.objects(ctx, r)
		if err != nil {
			changeSet.Add(resmgr.ChangeSetEntry{Subject: r.Template, Action: resmgr.FailedAction, Err: err})
			continue
		}
		changeSet.AddAll(s.rm.ApplyAll(ctx, objects, mode).Entries)
	}
	return changeSet
}

// Remove deletes the objects due at the stage, shared objects are
// kept while any of their owners stays installed.
func (s *Sweeper) Remove(ctx context.Context, stage Stage, component string, selection *components.Selection) *resmgr.ChangeSet {
	changeSet := resmgr.NewChangeSet()
	for _, r := range s.rules {
		if r.RemoveStage != stage || !s.matches(r, stage, component, selection, true) {
			continue
		}
		objects, err := s.objects(ctx, r)
		if err != nil {
			changeSet.Add(resmgr.ChangeSetEntry{Subject: r.Template, Action: resmgr.FailedAction, Err: err})
			continue
		}
		changeSet.AddAll(s.rm.DeleteAll(ctx, objects, false).Entries)
	}
	return changeSet
}

func (s *Sweeper) matches(r Rule, stage Stage, component string, selection *components.Selection, removing bool) bool {
	switch stage {
	case BeforeComponent, AfterComponent:
		return r.ownedBy(component)
	default:
		if removing && r.Shared {
			return r.allOwners(selection)
		}
		return r.anyOwner(selection)
	}
}

func (s *Sweeper) objects(ctx context.Context, r Rule) ([]*unstructured.Unstructured, error) {
	values := s.values
	values.Namespace = s.rm.Namespace()
	objects, err := templates.Objects(r.Template, values)
	if err != nil {
		ctrllog.FromContext(ctx).Error(err, "rendering auxiliary objects failed", "template", r.Template)
		return nil, err
	}
	return objects, nil
}
