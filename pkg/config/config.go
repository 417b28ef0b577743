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

package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"sigs.k8s.io/yaml"

	"github.com/razee-io/razeedeploy-delta/pkg/backoff"
	"github.com/razee-io/razeedeploy-delta/pkg/source"
)

const (
	ConfigKind       = "Config"
	ConfigApiVersion = "deploy.razee.io/v1alpha1"
	DefaultNamespace = "razeedeploy"
)

type Config struct {
	metav1.TypeMeta `json:",inline"`

	// Namespace is where razeedeploy is installed.
	Namespace string `json:"namespace,omitempty"`

	// FileSource is the base address of the component manifests,
	// an http(s) URL, an oci:// repository or a local directory.
	FileSource string `json:"fileSource,omitempty"`

	// FilePath is appended to the component directory of HTTP sources.
	FilePath string `json:"filePath,omitempty"`

	// Registry replaces 'quay.io/razee/' in the component images.
	Registry string `json:"registry,omitempty"`

	// Removal holds the CRD removal confirmation settings.
	Removal *Removal `json:"removal,omitempty"`

	// Registration holds the CRD registration confirmation settings.
	Registration *Registration `json:"registration,omitempty"`
}

type Removal struct {
	// Attempts is the number of times a CRD removal is checked.
	Attempts int `json:"attempts"`

	// TimeoutMinutes approximates the total time spent waiting for a CRD removal.
	TimeoutMinutes int `json:"timeoutMinutes"`
}

// Timeout returns the removal timeout as a duration.
func (r *Removal) Timeout() time.Duration {
	return time.Duration(r.TimeoutMinutes) * time.Minute
}

type Registration struct {
	// Attempts is the number of times a CRD registration is checked.
	Attempts int `json:"attempts"`

	// InitialDelay is doubled after each check.
	InitialDelay metav1.Duration `json:"initialDelay"`
}

// NewConfig returns a config with the default values.
func NewConfig() *Config {
	return &Config{
		TypeMeta: metav1.TypeMeta{
			Kind:       ConfigKind,
			APIVersion: ConfigApiVersion,
		},
		Namespace:    DefaultNamespace,
		FileSource:   source.DefaultFileSource,
		FilePath:     source.DefaultFilePath,
		Removal:      defaultRemoval(),
		Registration: defaultRegistration(),
	}
}

func defaultRemoval() *Removal {
	return &Removal{
		Attempts:       backoff.DefaultAttempts,
		TimeoutMinutes: int(backoff.DefaultTimeout / time.Minute),
	}
}

func defaultRegistration() *Registration {
	return &Registration{
		Attempts:     backoff.DefaultAttempts,
		InitialDelay: metav1.Duration{Duration: backoff.DefaultInitialDelay},
	}
}

// DefaultConfigPath returns '$HOME/.razeedeploy/config'
func DefaultConfigPath() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(homeDir, ".razeedeploy/config"), nil
}

// Read loads the config from the specified path,
// if the config file is not found, a default is returned.
func Read(configPath string) (*Config, error) {
	if configPath == "" {
		p, err := DefaultConfigPath()
		if err != nil {
			return nil, fmt.Errorf("$HOME dir can't be determined, error: %w", err)
		}
		configPath = p
	}

	if _, err := os.Stat(configPath); errors.Is(err, os.ErrNotExist) {
		return NewConfig(), nil
	}

	cfgData, err := os.ReadFile(configPath)
	if err != nil {
		return nil, err
	}

	cfg := &Config{}
	if err := yaml.Unmarshal(cfgData, cfg); err != nil {
		return nil, err
	}

	if cfg.Namespace == "" {
		cfg.Namespace = DefaultNamespace
	}

	if cfg.FileSource == "" {
		cfg.FileSource = source.DefaultFileSource
	}

	if cfg.Removal == nil {
		cfg.Removal = defaultRemoval()
	}

	if cfg.Registration == nil {
		cfg.Registration = defaultRegistration()
	}

	if cfg.Removal.Attempts < 0 || cfg.Registration.Attempts < 0 {
		return nil, fmt.Errorf("the number of attempts can't be negative")
	}

	if cfg.Removal.TimeoutMinutes < 0 {
		return nil, fmt.Errorf("the removal timeout can't be negative")
	}

	return cfg, nil
}

// Write saves the config at the given path, if no path is specified
// it will create or override '$HOME/.razeedeploy/config'.
func (c *Config) Write(configPath string) error {
	if configPath == "" {
		p, err := DefaultConfigPath()
		if err != nil {
			return err
		}
		configPath = p
	}

	if err := os.MkdirAll(filepath.Dir(configPath), os.FileMode(0755)); err != nil {
		return err
	}

	cfgData, err := yaml.Marshal(c)
	if err != nil {
		return err
	}

	if err := os.WriteFile(configPath, cfgData, os.FileMode(0666)); err != nil {
		return err
	}

	return nil
}
