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

	"github.com/spf13/cobra"

	"github.com/razee-io/razeedeploy-delta/pkg/lifecycle"
	"github.com/razee-io/razeedeploy-delta/pkg/resmgr"
)

var installCmd = &cobra.Command{
	Use:   "install",
	Short: "Install the Razee components and their prerequisites.",
	Long: `The install command applies the prerequisites, the razeedeploy configuration and the manifests
of the selected components. When no component is selected, all of them are installed.
Resources of retired components found on the cluster are removed.`,
	Example: `  # Install all components from the default source
  razeedeploy install

  # Install watch-keeper at a specific version and remote resource at the latest version
  razeedeploy install --wk=0.8.0 --rr

  # Install from an OCI repository and replace the existing objects
  razeedeploy install -s oci://docker.io/razee --age-identities ./identities.txt -f

  # Connect watch-keeper to Razeedash
  razeedeploy install --wk --rd-url https://app.razee.io/api/v2 --rd-org-key <key>
`,
	Args: cobra.NoArgs,
	RunE: runInstallCmd,
}

type installFlags struct {
	sourceFlags
	registry            string
	force               bool
	autoUpdate          bool
	rdURL               string
	rdAPI               string
	rdOrgKey            string
	rdClusterID         string
	rdClusterMetadata64 string
	iwCert              string
	wait                bool
}

var (
	installArgs       installFlags
	installComponents componentFlags
)

func init() {
	flags := installCmd.Flags()
	addSourceFlags(flags, &installArgs.sourceFlags)
	flags.StringVarP(&installArgs.registry, "registry", "r", "",
		"The image registry that replaces 'quay.io/razee/' in the component images.")
	flags.BoolVarP(&installArgs.force, "force", "f", false,
		"Replace the existing prerequisites and configuration objects.")
	flags.BoolVarP(&installArgs.autoUpdate, "autoupdate", "a", false,
		"Create a RemoteResource that keeps the installed components at their latest version.")
	flags.StringVar(&installArgs.rdURL, "rd-url", "",
		"The Razeedash API URL watch-keeper reports to.")
	flags.StringVar(&installArgs.rdAPI, "rd-api", "",
		"The Razeedash API base URL, defaults to the scheme and host of --rd-url.")
	flags.StringVar(&installArgs.rdOrgKey, "rd-org-key", "",
		"The Razeedash organization key.")
	flags.StringVar(&installArgs.rdClusterID, "rd-cluster-id", "",
		"The cluster ID reported to Razeedash.")
	flags.StringVar(&installArgs.rdClusterMetadata64, "rd-cluster-metadata64", "",
		"Base64 encoded JSON object of the cluster metadata e.g. '{\"name\": \"dev\"}'.")
	flags.StringVar(&installArgs.iwCert, "iw-cert", "",
		"Base64 encoded JSON '{\"ca\", \"server\", \"key\"}' of the impersonation webhook certificate, "+
			"a self-signed certificate is generated when not set.")
	flags.BoolVar(&installArgs.wait, "wait", false,
		"Wait for the applied resources to become ready.")
	installComponents = addComponentFlags(flags, "Install")

	rootCmd.AddCommand(installCmd)
}

func runInstallCmd(cmd *cobra.Command, args []string) error {
	src, err := newSource(installArgs.sourceFlags)
	if err != nil {
		return err
	}

	rm, err := newResourceManager(managerFlags{registry: installArgs.registry})
	if err != nil {
		return err
	}

	waiter, err := newOptionalWaiter(installArgs.wait)
	if err != nil {
		return err
	}

	ctx, cancel := newContext()
	defer cancel()

	mode := resmgr.EnsureExists
	if installArgs.force {
		mode = resmgr.Replace
	}

	sel := installComponents.selection(cmd.Flags())
	logger.Println(`►`, "installing", describeSelection(sel), "in namespace", rm.Namespace())

	result := lifecycle.NewInstaller(rm, src, waiter).Run(ctx, lifecycle.InstallOptions{
		Selection:  sel,
		Mode:       mode,
		AutoUpdate: installArgs.autoUpdate,
		Identity: lifecycle.Identity{
			RazeedashURL:      installArgs.rdURL,
			RazeedashAPI:      installArgs.rdAPI,
			OrgKey:            installArgs.rdOrgKey,
			ClusterID:         installArgs.rdClusterID,
			ClusterMetadata64: installArgs.rdClusterMetadata64,
		},
		WebhookCert: installArgs.iwCert,
		Wait:        installArgs.wait,
		WaitTimeout: rootArgs.timeout,
	})

	printChangeSet(result.ChangeSet)
	if err := result.Err(); err != nil {
		return fmt.Errorf("install failed: %w", err)
	}

	logger.Println(`✓`, "install finished")
	return nil
}
