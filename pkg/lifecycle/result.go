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

// Package lifecycle runs the install and remove workflows of razeedeploy:
// deprecated resource migration, prerequisites, components in catalog
// order, auxiliary objects and auto-update.
package lifecycle

import (
	"errors"
	"fmt"

	utilerrors "k8s.io/apimachinery/pkg/util/errors"

	"github.com/razee-io/razeedeploy-delta/pkg/resmgr"
)

// Result collects the outcome of a run. Once failed it stays failed.
type Result struct {
	// ChangeSet holds every operation performed during the run.
	ChangeSet *resmgr.ChangeSet

	failed bool
	errs   []error
}

func newResult() *Result {
	return &Result{ChangeSet: resmgr.NewChangeSet()}
}

// Fold records the change set and fails the run if any entry failed.
func (r *Result) Fold(cs *resmgr.ChangeSet) {
	r.Record(cs)
	for _, e := range cs.Failures() {
		r.Fail(fmt.Errorf("%s failed: %w", e.Subject, e.Err))
	}
}

// Record adds the change set to the run without affecting its outcome.
func (r *Result) Record(cs *resmgr.ChangeSet) {
	if cs != nil {
		r.ChangeSet.AddAll(cs.Entries)
	}
}

// Fail marks the run as failed.
func (r *Result) Fail(err error) {
	r.failed = true
	if err != nil {
		r.errs = append(r.errs, err)
	}
}

// Succeeded reports whether every step of the run succeeded.
func (r *Result) Succeeded() bool {
	return !r.failed
}

// Err returns the aggregated errors of a failed run.
func (r *Result) Err() error {
	if !r.failed {
		return nil
	}
	if agg := utilerrors.NewAggregate(r.errs); agg != nil {
		return agg
	}
	return errors.New("run failed")
}
