/*
Copyright 2026 The Flux authors

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
	"regexp"
	"time"
)

// Options contains the inputs of a single fetch.
type Options struct {
	// Owner is the owner of the repository to fetch from.
	Owner string `json:"owner"`

	// Repository is the name of the repository to fetch from.
	Repository string `json:"repo"`

	// File is a regular expression matched against file names.
	File string `json:"file"`

	// Target is a semver range or a git reference.
	Target string `json:"target"`

	// Token authenticates requests to the GitHub API.
	Token string `json:"-"`

	// Prereleases allows pre-release versions to satisfy Target.
	Prereleases bool `json:"prereleases"`

	// ArtifactName is the name of the workflow artifact to read when no
	// release satisfies Target.
	ArtifactName string `json:"artifactName"`

	// ContainerPackage is the image read when no release asset matches File.
	ContainerPackage string `json:"containerPackage"`

	// FailOnMissingTarget turns an empty result into a failure.
	FailOnMissingTarget bool `json:"failOnMissingTarget"`

	// WaitForExactTarget waits for the workflow runs at Target instead of
	// falling back to parent commits.
	WaitForExactTarget bool `json:"waitForExactTarget"`

	// ContainerRegistry is the registry hosting ContainerPackage.
	ContainerRegistry string `json:"containerRegistry"`

	// RegistryCredentials are used instead of anonymous access to the
	// registry, either a token or user:password.
	RegistryCredentials string `json:"-"`

	// APIURL is the base URL of the GitHub REST API.
	APIURL string `json:"apiURL"`

	// RunID is the workflow run this fetch is part of.
	RunID int64 `json:"runID"`

	// OutputDir is where extracted files are written.
	OutputDir string `json:"outputDir"`

	// PollInterval is the delay between checks for run completion.
	PollInterval time.Duration `json:"pollInterval"`

	// MaxPolls limits the checks for run completion, 0 means no limit.
	MaxPolls int `json:"maxPolls"`

	// WaitTimeout limits the time spent waiting for runs, 0 means no limit.
	WaitTimeout time.Duration `json:"waitTimeout"`

	// MaxParentDepth limits the parent commits visited, 0 means no limit.
	MaxParentDepth int `json:"maxParentDepth"`

	// HTTPRetries is the maximum number of retries of a failed request.
	HTTPRetries int `json:"httpRetries"`

	filePattern *regexp.Regexp
	inputErrs   []error
}

// Validate checks that the required inputs are set and compiles the file
// pattern.
func (o *Options) Validate() error {
	errs := append([]error{}, o.inputErrs...)

	for _, r := range []struct {
		name, value string
	}{
		{flagOwner, o.Owner},
		{flagRepository, o.Repository},
		{flagFile, o.File},
		{flagTarget, o.Target},
		{flagToken, o.Token},
	} {
		if r.value == "" {
			errs = append(errs, fmt.Errorf("input %q is required", r.name))
		}
	}

	if o.File != "" {
		re, err := regexp.Compile(o.File)
		if err != nil {
			errs = append(errs, fmt.Errorf("invalid file pattern %q: %w", o.File, err))
		} else {
			o.filePattern = re
		}
	}

	if o.PollInterval <= 0 {
		errs = append(errs, fmt.Errorf("%s must be positive, got %s", flagPollInterval, o.PollInterval))
	}
	for _, n := range []struct {
		name  string
		value int64
	}{
		{flagMaxPolls, int64(o.MaxPolls)},
		{flagWaitTimeout, int64(o.WaitTimeout)},
		{flagMaxParentDepth, int64(o.MaxParentDepth)},
		{flagHTTPRetries, int64(o.HTTPRetries)},
	} {
		if n.value < 0 {
			errs = append(errs, fmt.Errorf("%s cannot be negative", n.name))
		}
	}

	return errors.Join(errs...)
}

// FilePattern returns the pattern compiled by Validate.
func (o *Options) FilePattern() *regexp.Regexp {
	return o.filePattern
}
