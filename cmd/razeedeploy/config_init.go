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
	"github.com/spf13/cobra"

	"github.com/razee-io/razeedeploy-delta/pkg/config"
)

var configInit = &cobra.Command{
	Use:   "init",
	Short: "Init writes a config file with default values at '$HOME/.razeedeploy/config'.",
	Args:  cobra.NoArgs,
	RunE:  runConfigInitCmd,
}

type configInitFlags struct {
	path string
}

var configInitArgs configInitFlags

func init() {
	configInit.Flags().StringVar(&configInitArgs.path, "path", "",
		"Write the config file at this path instead of the default location.")
	configCmd.AddCommand(configInit)
}

func runConfigInitCmd(cmd *cobra.Command, args []string) error {
	cfgPath := configInitArgs.path
	if cfgPath == "" {
		p, err := config.DefaultConfigPath()
		if err != nil {
			return err
		}
		cfgPath = p
	}

	c := config.NewConfig()
	if err := c.Write(cfgPath); err != nil {
		return err
	}

	logger.Println(`✓`, "config written to", cfgPath)
	return nil
}
