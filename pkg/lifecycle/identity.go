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

package lifecycle

import (
	"context"
	"fmt"
	"net/url"

	ctrllog "sigs.k8s.io/controller-runtime/pkg/log"

	"github.com/razee-io/razeedeploy-delta/pkg/templates"
)

// Identity holds the Razee connection settings of the cluster.
type Identity struct {
	// RazeedashURL is the URL watch-keeper reports to.
	RazeedashURL string
	// RazeedashAPI is the Razee API URL, defaults to the origin of RazeedashURL.
	RazeedashAPI string
	OrgKey       string
	ClusterID    string
	// ClusterMetadata64 is a base64 encoded JSON object.
	ClusterMetadata64 string
}

// Configured reports whether the API address and the org key are set.
func (i Identity) Configured() bool {
	return (i.RazeedashURL != "" || i.RazeedashAPI != "") && i.OrgKey != ""
}

// Values converts the identity to template values. Invalid URLs and
// malformed cluster metadata are logged and left out.
func (i Identity) Values(ctx context.Context) templates.Values {
	log := ctrllog.FromContext(ctx)
	values := templates.Values{
		OrgKey:    i.OrgKey,
		ClusterID: i.ClusterID,
	}

	if i.RazeedashURL != "" {
		if u, err := parseURL(i.RazeedashURL); err != nil {
			log.Info("razeedash url is not a valid url", "url", i.RazeedashURL)
		} else {
			values.RazeedashURL = u.String()
			values.RazeedashAPI = u.Scheme + "://" + u.Host
		}
	}

	if i.RazeedashAPI != "" {
		if u, err := parseURL(i.RazeedashAPI); err != nil {
			log.Info("razeedash api is not a valid url", "url", i.RazeedashAPI)
		} else {
			values.RazeedashAPI = u.String()
		}
	}

	metadata, err := templates.ParseClusterMetadata(i.ClusterMetadata64)
	if err != nil {
		log.Info("can not decode or parse cluster metadata", "error", err.Error())
	}
	values.ClusterMetadata = metadata

	return values
}

func parseURL(s string) (*url.URL, error) {
	u, err := url.ParseRequestURI(s)
	if err != nil {
		return nil, err
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("'%s' is missing a scheme or host", s)
	}
	return u, nil
}
