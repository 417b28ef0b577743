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

package source

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"sigs.k8s.io/kustomize/api/krusty"
	kustypes "sigs.k8s.io/kustomize/api/types"
	"sigs.k8s.io/kustomize/kyaml/filesys"

	"github.com/razee-io/razeedeploy-delta/pkg/components"
)

var kustomizeBuildMutex sync.Mutex

// LocalSource reads manifests from <dir>/<ComponentDir>. A component
// directory with a kustomization.yaml is built with kustomize,
// otherwise its resource.yaml is returned. Versions are ignored.
type LocalSource struct {
	dir string
}

func (s *LocalSource) Fetch(_ context.Context, component components.Component, _ string) ([]byte, error) {
	base := filepath.Join(s.dir, component.Dir)

	if _, err := os.Stat(filepath.Join(base, "kustomization.yaml")); err == nil {
		return buildKustomization(base)
	}

	data, err := os.ReadFile(filepath.Join(base, "resource.yaml"))
	if err != nil {
		return nil, fmt.Errorf("reading %s manifests failed: %w", component.Name, err)
	}
	return data, nil
}

func buildKustomization(base string) ([]byte, error) {
	kustomizeBuildMutex.Lock()
	defer kustomizeBuildMutex.Unlock()

	fs := filesys.MakeFsOnDisk()

	if filepath.IsAbs(base) {
		wd, err := os.Getwd()
		if err != nil {
			return nil, err
		}
		base, err = filepath.Rel(wd, base)
		if err != nil {
			return nil, err
		}
	}

	buildOptions := &krusty.Options{
		LoadRestrictions: kustypes.LoadRestrictionsNone,
		PluginConfig:     kustypes.DisabledPluginConfig(),
	}

	k := krusty.MakeKustomizer(buildOptions)
	m, err := k.Run(fs, base)
	if err != nil {
		return nil, fmt.Errorf("kustomize build of %s failed: %w", base, err)
	}

	return m.AsYaml()
}
