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
	"archive/tar"
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/google/go-containerregistry/pkg/crane"
	"github.com/google/go-containerregistry/pkg/name"
	gcrv1 "github.com/google/go-containerregistry/pkg/v1"
)

const URLPrefix = "oci://"

// ParseRepositoryURL trims the oci:// prefix and validates the repository address.
func ParseRepositoryURL(ociURL string) (string, error) {
	if !strings.HasPrefix(ociURL, URLPrefix) {
		return "", fmt.Errorf("URL must be in format 'oci://<domain>/<org>/<repo>'")
	}

	url := strings.TrimSuffix(strings.TrimPrefix(ociURL, URLPrefix), "/")
	if _, err := name.NewRepository(url); err != nil {
		return "", fmt.Errorf("'%s' invalid: %w", ociURL, err)
	}
	return url, nil
}

// ArtifactURL returns the address of a component artifact in the repository.
func ArtifactURL(repository, component, version string) string {
	return fmt.Sprintf("%s/%s:%s", repository, component, version)
}

func craneOptions(ctx context.Context) []crane.Option {
	return []crane.Option{
		crane.WithContext(ctx),
		crane.WithUserAgent("razeedeploy/v1"),
		crane.WithPlatform(&gcrv1.Platform{
			Architecture: "none",
			OS:           "none",
		}),
	}
}

// tarContent returns a tar archive holding one file with the given data.
func tarContent(fileName string, data []byte) ([]byte, error) {
	var buf bytes.Buffer
	tw := tar.NewWriter(&buf)

	header := &tar.Header{
		Name: fileName,
		Mode: 0600,
		Size: int64(len(data)),
	}
	if err := tw.WriteHeader(header); err != nil {
		return nil, err
	}
	if _, err := tw.Write(data); err != nil {
		return nil, err
	}
	if err := tw.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// untarContent concatenates the regular files of the tar archive.
func untarContent(r io.Reader) ([]byte, error) {
	var buf bytes.Buffer
	tr := tar.NewReader(r)
	for {
		header, err := tr.Next()
		switch {
		case err == io.EOF:
			return buf.Bytes(), nil
		case err != nil:
			return nil, err
		case header == nil:
			continue
		}

		if header.Typeflag == tar.TypeReg {
			if _, err := io.Copy(&buf, tr); err != nil {
				return nil, err
			}
		}
	}
}
