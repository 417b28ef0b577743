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
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-logr/logr"
	"github.com/spf13/cobra"
	"go.uber.org/zap/zapcore"
	"k8s.io/cli-runtime/pkg/genericclioptions"
	_ "k8s.io/client-go/plugin/pkg/client/auth"
	ctrllog "sigs.k8s.io/controller-runtime/pkg/log"
	"sigs.k8s.io/controller-runtime/pkg/log/zap"

	"github.com/razee-io/razeedeploy-delta/pkg/config"
)

var VERSION = "1.0.0-dev.0"

const PROJECT = "razeedeploy"

var rootCmd = &cobra.Command{
	Use:           PROJECT,
	Version:       VERSION,
	SilenceUsage:  true,
	SilenceErrors: true,
	Short:         "A command line utility to install and remove the Razee components on a Kubernetes cluster.",
	Long: `razeedeploy manages the lifecycle of the Razee add-ons.

Install the components, all of them when none is specified:

- razeedeploy install [--wk[=<version>]] [--cs] [--rr] [--iw] [-s <source>] [-f] [-a] --wait
- razeedeploy install --wk --rd-url https://app.razee.io/api/v2 --rd-org-key <key>

Remove the components, all of them when none is specified:

- razeedeploy remove [--wk] [--rr] [-f] [--dn] --wait

Manifest sources are an https base URL, an oci:// repository or a local directory.
`,
}

type rootFlags struct {
	timeout  time.Duration
	logLevel string
}

var (
	rootArgs = rootFlags{}
	logger   = stderrLogger{stderr: os.Stderr}
	cfg      = config.NewConfig()
)

var kubeconfigArgs = genericclioptions.NewConfigFlags(false)

func init() {
	rootCmd.PersistentFlags().DurationVar(&rootArgs.timeout, "timeout", 30*time.Minute,
		"The length of time to wait before giving up on the current operation.")
	rootCmd.PersistentFlags().StringVar(&rootArgs.logLevel, "log-level", "info",
		"The verbosity of the engine logs, one of 'debug', 'info' or 'error'.")

	kubeconfigArgs.Timeout = nil
	kubeconfigArgs.Namespace = nil
	// -s is taken by --file-source
	kubeconfigArgs.APIServer = nil
	kubeconfigArgs.AddFlags(rootCmd.PersistentFlags())

	defaultNamespace := cfg.Namespace
	kubeconfigArgs.Namespace = &defaultNamespace
	rootCmd.PersistentFlags().StringVarP(kubeconfigArgs.Namespace, "namespace", "n", *kubeconfigArgs.Namespace,
		"The namespace razeedeploy is installed in.")

	rootCmd.DisableAutoGenTag = true
	rootCmd.SetOut(os.Stdout)
}

func main() {
	loadConfig()
	if err := rootCmd.Execute(); err != nil {
		logger.Println(`✗`, err)
		os.Exit(1)
	}
}

func loadConfig() {
	if c, err := config.Read(""); err != nil {
		logger.Println(`✗`, fmt.Errorf("loading the config failed, error: %w", err))
	} else {
		cfg = c
	}

	*kubeconfigArgs.Namespace = cfg.Namespace
}

// newContext returns a context bound to the global timeout and to the
// interrupt signals, carrying the engine logger.
func newContext() (context.Context, context.CancelFunc) {
	ctx, cancelTimeout := context.WithTimeout(context.Background(), rootArgs.timeout)
	ctx, cancelSignal := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)

	ctx = ctrllog.IntoContext(ctx, newEngineLogger())

	return ctx, func() {
		cancelSignal()
		cancelTimeout()
	}
}

func newEngineLogger() logr.Logger {
	var level zapcore.Level
	if err := level.UnmarshalText([]byte(rootArgs.logLevel)); err != nil {
		logger.Println(`✗`, fmt.Errorf("invalid log level '%s', using 'info'", rootArgs.logLevel))
		level = zapcore.InfoLevel
	}

	return zap.New(
		zap.WriteTo(logger.stderr),
		zap.UseDevMode(level == zapcore.DebugLevel),
		zap.Level(level),
	)
}
