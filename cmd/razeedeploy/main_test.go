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
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/fluxcd/pkg/ssa"
	"github.com/mattn/go-shellwords"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"

	"github.com/razee-io/razeedeploy-delta/pkg/kube/kubefake"
	"github.com/razee-io/razeedeploy-delta/pkg/lifecycle"
	"github.com/razee-io/razeedeploy-delta/pkg/objectutil"
	"github.com/razee-io/razeedeploy-delta/pkg/resmgr"
)

var (
	tmpDir  string
	cluster *kubefake.Cluster
	waiter  *fakeWaiter
)

func TestMain(m *testing.M) {
	var err error
	tmpDir, err = os.MkdirTemp("", "razeedeploy")
	if err != nil {
		panic(err)
	}

	newResourceClient = func() (resmgr.ResourceClient, error) {
		return cluster.Client(), nil
	}
	newWaiter = func() (lifecycle.Waiter, error) {
		return waiter, nil
	}

	code := m.Run()

	_ = os.RemoveAll(tmpDir)
	os.Exit(code)
}

// resetCluster replaces the fake cluster and waiter used by the commands.
func resetCluster() {
	cluster = kubefake.NewCluster(nil, kubefake.WithCustomResource("RemoteResource", "remoteresources"))
	waiter = &fakeWaiter{}
}

type fakeWaiter struct {
	ready      []string
	terminated []string
}

func (w *fakeWaiter) Wait(objects []*unstructured.Unstructured, _ ssa.WaitOptions) error {
	w.ready = append(w.ready, objectutil.FmtUnstructuredList(objects))
	return nil
}

func (w *fakeWaiter) WaitForTermination(objects []*unstructured.Unstructured, _ ssa.WaitOptions) error {
	w.terminated = append(w.terminated, objectutil.FmtUnstructuredList(objects))
	return nil
}

type TestFile struct {
	Name string
	Body string
}

func makeTestDir(name string, files []TestFile) (string, error) {
	dir := filepath.Join(tmpDir, name)
	_ = os.RemoveAll(dir)

	for _, file := range files {
		p := filepath.Join(dir, file.Name)
		if err := os.MkdirAll(filepath.Dir(p), 0700); err != nil {
			return dir, err
		}
		if err := os.WriteFile(p, []byte(file.Body), 0644); err != nil {
			return dir, err
		}
	}
	return dir, nil
}

func deployment(name string) string {
	return fmt.Sprintf(`apiVersion: apps/v1
kind: Deployment
metadata:
  name: %s
spec:
  template:
    spec:
      containers:
      - name: %s
        image: quay.io/razee/%s:0.1.0
`, name, name, name)
}

// testSource returns the files of a local source with a single
// deployment per component.
func testSource() []TestFile {
	return []TestFile{
		{Name: "WatchKeeper/resource.yaml", Body: deployment("watch-keeper")},
		{Name: "RemoteResource/resource.yaml", Body: deployment("remoteresource-controller")},
	}
}

func executeCommand(cmd string) (string, error) {
	defer resetCmdArgs()
	args, err := shellwords.Parse(cmd)
	if err != nil {
		return "", err
	}

	buf := new(bytes.Buffer)

	rootCmd.SetOut(buf)
	rootCmd.SetErr(buf)
	rootCmd.SetArgs(args)

	logger.stderr = rootCmd.ErrOrStderr()

	_, err = rootCmd.ExecuteC()
	result := buf.String()

	return result, err
}

func resetCmdArgs() {
	for _, cmd := range []*cobra.Command{installCmd, removeCmd, configInit} {
		cmd.Flags().VisitAll(func(f *pflag.Flag) {
			if rootCmd.PersistentFlags().Lookup(f.Name) != nil {
				return
			}
			_ = f.Value.Set(f.DefValue)
			f.Changed = false
		})
	}
	*kubeconfigArgs.Namespace = cfg.Namespace
}
