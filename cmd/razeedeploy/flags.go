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
	"strings"

	"github.com/spf13/pflag"

	"github.com/razee-io/razeedeploy-delta/pkg/components"
	"github.com/razee-io/razeedeploy-delta/pkg/migrate"
	"github.com/razee-io/razeedeploy-delta/pkg/resmgr"
)

// flagAliases maps alternative long flag names to the canonical ones.
// Component aliases are resolved through the catalog.
var flagAliases = map[string]string{
	"fp":                           "file-path",
	"dn":                           "delete-namespace",
	"er":                           "encryptedresource",
	"razeedash-url":                "rd-url",
	"razeedash-api":                "rd-api",
	"razeedash-org-key":            "rd-org-key",
	"razeedash-cluster-id":         "rd-cluster-id",
	"razeedash-cluster-metadata64": "rd-cluster-metadata64",
}

func normalizeFlagName(_ *pflag.FlagSet, name string) pflag.NormalizedName {
	if c, ok := components.Lookup(name); ok {
		return pflag.NormalizedName(c.Name)
	}
	if canonical, ok := flagAliases[name]; ok {
		return pflag.NormalizedName(canonical)
	}
	return pflag.NormalizedName(name)
}

// componentFlags holds the requested version of each component flag.
type componentFlags map[string]*string

func addComponentFlags(flags *pflag.FlagSet, action string) componentFlags {
	values := componentFlags{}

	for _, c := range components.Catalog() {
		values[c.Name] = flags.String(c.Name, "",
			fmt.Sprintf("%s %s, the component that %s. Takes an optional version e.g. --%s=0.8.0 (aliases: --%s).",
				action, c.Name, c.Description, c.Aliases[0], strings.Join(c.Aliases, ", --")))
		flags.Lookup(c.Name).NoOptDefVal = components.LatestVersion
	}

	for _, entry := range migrate.Registry() {
		values[entry.Key] = flags.String(entry.Key, "", fmt.Sprintf("%s %s.", action, entry.Key))
		flags.Lookup(entry.Key).NoOptDefVal = components.LatestVersion
		_ = flags.MarkDeprecated(entry.Key, "its resources are removed on every run")
	}

	flags.SetNormalizeFunc(normalizeFlagName)
	return values
}

// selection returns the components set on the command line,
// or every component when none is set.
func (c componentFlags) selection(flags *pflag.FlagSet) *components.Selection {
	requested := make(map[string]string)
	for name, version := range c {
		if flags.Changed(name) {
			requested[name] = *version
		}
	}
	return components.NewSelection(requested)
}

type sourceFlags struct {
	fileSource    string
	filePath      string
	ageIdentities string
}

func addSourceFlags(flags *pflag.FlagSet, f *sourceFlags) {
	flags.StringVarP(&f.fileSource, "file-source", "s", "",
		"The manifests source, an https base URL, an 'oci://' repository or a local directory. "+
			"Defaults to the config file value.")
	flags.StringVar(&f.filePath, "file-path", "",
		"The path of the manifest under the component directory of an https source, "+
			"'{{install_version}}' is replaced with the requested version (alias: --fp).")
	flags.StringVar(&f.ageIdentities, "age-identities", "",
		"Path to a file containing the age private keys used to decrypt 'oci://' manifests.")
}

func printChangeSet(cs *resmgr.ChangeSet) {
	for _, entry := range cs.Entries {
		if entry.Failed() {
			logger.Println(`✗`, entry.String())
			continue
		}
		logger.Println(entry.String())
	}
}

func describeSelection(sel *components.Selection) string {
	if sel.All() {
		return "all components"
	}
	keys := sel.Keys()
	for i, key := range keys {
		keys[i] = key + "@" + sel.Version(key)
	}
	return strings.Join(keys, ", ")
}
