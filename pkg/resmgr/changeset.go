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

import "fmt"

// Action represents the action type performed on an object.
type Action string

const (
	CreatedAction    Action = "created"
	ConfiguredAction Action = "configured"
	UnchangedAction  Action = "unchanged"
	DeletedAction    Action = "deleted"
	NotFoundAction   Action = "not found"
	FailedAction     Action = "failed"
)

// ChangeSet holds the outcomes of the operations performed on an object collection.
type ChangeSet struct {
	Entries []ChangeSetEntry
}

func NewChangeSet() *ChangeSet {
	return &ChangeSet{Entries: []ChangeSetEntry{}}
}

func (c *ChangeSet) Add(e ChangeSetEntry) {
	c.Entries = append(c.Entries, e)
}

func (c *ChangeSet) AddAll(e []ChangeSetEntry) {
	c.Entries = append(c.Entries, e...)
}

// Success returns false if any entry has failed.
func (c *ChangeSet) Success() bool {
	for _, e := range c.Entries {
		if e.Failed() {
			return false
		}
	}
	return true
}

// Failures returns the failed entries.
func (c *ChangeSet) Failures() []ChangeSetEntry {
	var failed []ChangeSetEntry
	for _, e := range c.Entries {
		if e.Failed() {
			failed = append(failed, e)
		}
	}
	return failed
}

// ChangeSetEntry defines the outcome of an operation performed on an object.
type ChangeSetEntry struct {
	// Subject represents the Object ID in the format 'kind/namespace/name'.
	Subject string
	// Action represents the action type taken for this object.
	Action Action
	// Err is set when the operation failed.
	Err error
}

func (e ChangeSetEntry) Failed() bool {
	return e.Err != nil
}

func (e ChangeSetEntry) String() string {
	if e.Err != nil {
		return fmt.Sprintf("%s %s: %v", e.Subject, FailedAction, e.Err)
	}
	return fmt.Sprintf("%s %s", e.Subject, e.Action)
}
