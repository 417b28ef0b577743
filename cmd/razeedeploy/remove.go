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
)

var removeCmd = &cobra.Command{
	Use:   "remove",
	Short: "Remove the Razee components and their prerequisites.",
	Long: `The remove command deletes the manifests of the selected components, in reverse order.
Custom resource definitions are deleted after their custom resources, with --force the finalizers
of the lingering custom resources are cleared. When no component is selected, all of them are removed.`,
	Example: `  # Remove all components and the namespace
  razeedeploy remove --dn

  # Remove remote resource, clearing the finalizers of its custom resources
  razeedeploy remove --rr -f -a 10 -t 10
`,
	Args: cobra.NoArgs,
	RunE: runRemoveCmd,
}

type removeFlags struct {
	sourceFlags
	force           bool
	deleteNamespace bool
	attempts        int
	timeoutMinutes  int
	wait            bool
}

var (
	removeArgs       removeFlags
	removeComponents componentFlags
)

func init() {
	flags := removeCmd.Flags()
	addSourceFlags(flags, &removeArgs.sourceFlags)
	flags.BoolVarP(&removeArgs.force, "force", "f", false,
		"Clear the finalizers of the custom resources that block the removal of their definition.")
	flags.BoolVar(&removeArgs.deleteNamespace, "delete-namespace", false,
		"Delete the razeedeploy namespace (alias: --dn).")
	flags.IntVarP(&removeArgs.attempts, "attempts", "a", 0,
		"The number of times a custom resource definition removal is checked, defaults to the config file value.")
	flags.IntVarP(&removeArgs.timeoutMinutes, "timeout-minutes", "t", 0,
		"The approximate minutes spent waiting for a custom resource definition removal, defaults to the config file value.")
	flags.BoolVar(&removeArgs.wait, "wait", false,
		"Wait for the deleted resources to be terminated.")
	removeComponents = addComponentFlags(flags, "Remove")

	rootCmd.AddCommand(removeCmd)
}

func runRemoveCmd(cmd *cobra.Command, args []string) error {
	if removeArgs.attempts < 0 || removeArgs.timeoutMinutes < 0 {
		return fmt.Errorf("--attempts and --timeout-minutes must not be negative")
	}

	src, err := newSource(removeArgs.sourceFlags)
	if err != nil {
		return err
	}

	rm, err := newResourceManager(managerFlags{
		removalAttempts: removeArgs.attempts,
		removalTimeout:  removeArgs.timeoutMinutes,
	})
	if err != nil {
		return err
	}

	waiter, err := newOptionalWaiter(removeArgs.wait)
	if err != nil {
		return err
	}

	ctx, cancel := newContext()
	defer cancel()

	sel := removeComponents.selection(cmd.Flags())
	logger.Println(`►`, "removing", describeSelection(sel), "from namespace", rm.Namespace())

	result := lifecycle.NewRemover(rm, src, waiter).Run(ctx, lifecycle.RemoveOptions{
		Selection:       sel,
		Force:           removeArgs.force,
		DeleteNamespace: removeArgs.deleteNamespace,
		Wait:            removeArgs.wait,
		WaitTimeout:     rootArgs.timeout,
	})

	printChangeSet(result.ChangeSet)
	if err := result.Err(); err != nil {
		return fmt.Errorf("remove failed: %w", err)
	}

	logger.Println(`✓`, "remove finished")
	return nil
}
