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
	"io"
	"strings"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/razee-io/razeedeploy-delta/pkg/components"
	"github.com/razee-io/razeedeploy-delta/pkg/migrate"
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "Prints information about the razeedeploy catalog.",
}

var listComponentsCmd = &cobra.Command{
	Use:     "components",
	Aliases: []string{"component"},
	Short:   "List the installable components and the retired ones.",
	Args:    cobra.NoArgs,
	RunE:    runListComponentsCmd,
}

func init() {
	listCmd.AddCommand(listComponentsCmd)
	rootCmd.AddCommand(listCmd)
}

func runListComponentsCmd(cmd *cobra.Command, args []string) error {
	var rows [][]string
	for _, c := range components.Catalog() {
		requires := c.Requires
		if requires == "" {
			requires = "-"
		}
		rows = append(rows, []string{c.Name, "--" + strings.Join(c.Aliases, ", --"), requires, c.Description})
	}
	for _, entry := range migrate.Registry() {
		rows = append(rows, []string{entry.Key, "-", "-", "retired, removed on every run"})
	}

	printTable(rootCmd.OutOrStdout(), []string{"component", "flags", "requires", "description"}, rows)
	return nil
}

func printTable(writer io.Writer, header []string, rows [][]string) {
	table := tablewriter.NewWriter(writer)
	table.SetHeader(header)
	table.SetAutoWrapText(false)
	table.SetAutoFormatHeaders(true)
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetCenterSeparator("")
	table.SetColumnSeparator("")
	table.SetRowSeparator("")
	table.SetHeaderLine(false)
	table.SetBorder(false)
	table.SetTablePadding("\t")
	table.SetNoWhiteSpace(true)
	table.AppendBulk(rows)
	table.Render()
}
