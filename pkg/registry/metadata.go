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

package registry

import (
	"fmt"
)

const (
	ComponentAnnotation  = "deploy.razee.io/component"
	VersionAnnotation    = "deploy.razee.io/version"
	ChecksumAnnotation   = "deploy.razee.io/checksum"
	CreatedAnnotation    = "deploy.razee.io/created"
	EncryptedAnnotation  = "deploy.razee.io/encrypted"
	AgeEncryptionVersion = "age-encryption.org/v1"
)

// Metadata describes a component manifest artifact.
type Metadata struct {
	Component string `json:"component"`
	Version   string `json:"version"`
	Checksum  string `json:"checksum"`
	Created   string `json:"created"`
	Encrypted string `json:"encrypted,omitempty"`
	Digest    string `json:"digest,omitempty"`
}

// ToAnnotations returns the OCI manifest annotations of the artifact.
func (m *Metadata) ToAnnotations() map[string]string {
	annotations := map[string]string{
		ComponentAnnotation: m.Component,
		VersionAnnotation:   m.Version,
		ChecksumAnnotation:  m.Checksum,
		CreatedAnnotation:   m.Created,
	}
	if m.Encrypted != "" {
		annotations[EncryptedAnnotation] = m.Encrypted
	}
	return annotations
}

// GetMetadata reads the artifact metadata from the OCI manifest annotations.
// The component and created annotations are optional.
func GetMetadata(annotations map[string]string) (*Metadata, error) {
	version, ok := annotations[VersionAnnotation]
	if !ok {
		return nil, fmt.Errorf("'%s' annotation not found", VersionAnnotation)
	}

	checksum, ok := annotations[ChecksumAnnotation]
	if !ok {
		return nil, fmt.Errorf("'%s' annotation not found", ChecksumAnnotation)
	}

	return &Metadata{
		Component: annotations[ComponentAnnotation],
		Version:   version,
		Checksum:  checksum,
		Created:   annotations[CreatedAnnotation],
		Encrypted: annotations[EncryptedAnnotation],
	}, nil
}
