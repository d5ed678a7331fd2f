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
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/pflag"
)

const (
	flagOwner               = "owner"
	flagRepository          = "repo"
	flagFile                = "file"
	flagTarget              = "target"
	flagToken               = "token"
	flagPrereleases         = "prereleases"
	flagArtifactName        = "artifact-name"
	flagContainerPackage    = "container-package"
	flagFailOnMissingTarget = "fail-on-missing-target"
	flagWaitForExactTarget  = "wait-for-exact-target"
	flagContainerRegistry   = "container-registry"
	flagRegistryCredentials = "registry-credentials"
	flagAPIURL              = "api-url"
	flagRunID               = "run-id"
	flagOutputDir           = "output-dir"
	flagPollInterval        = "poll-interval"
	flagMaxPolls            = "max-polls"
	flagWaitTimeout         = "wait-timeout"
	flagMaxParentDepth      = "max-parent-depth"
	flagHTTPRetries         = "http-retries"

	envAPIURL = "GITHUB_API_URL"
	envRunID  = "GITHUB_RUN_ID"

	defaultContainerRegistry = "ghcr.io"
	defaultAPIURL            = "https://api.github.com/"
	defaultOutputDir         = "."
	defaultPollInterval      = 5 * time.Second
	defaultMaxParentDepth    = 100
	defaultHTTPRetries       = 3
)

// Inputs looks up action inputs and environment variables. It is
// implemented by *githubactions.Action.
type Inputs interface {
	GetInput(name string) string
	Getenv(key string) string
}

// BindFlags binds the options to fs. The default of every flag is the
// action input of the same name, when set.
func (o *Options) BindFlags(fs *pflag.FlagSet, in Inputs) {
	fs.StringVar(&o.Owner, flagOwner, in.GetInput(flagOwner),
		"The owner of the repository to fetch from.")
	fs.StringVar(&o.Repository, flagRepository, in.GetInput(flagRepository),
		"The name of the repository to fetch from.")
	fs.StringVar(&o.File, flagFile, in.GetInput(flagFile),
		"The regular expression matched against the names of the files to extract.")
	fs.StringVar(&o.Target, flagTarget, in.GetInput(flagTarget),
		"The semver range or git reference to fetch.")
	fs.StringVar(&o.Token, flagToken, in.GetInput(flagToken),
		"The token used to authenticate to the GitHub API.")
	fs.BoolVar(&o.Prereleases, flagPrereleases, o.boolInput(in, flagPrereleases, false),
		"Allow pre-release versions to satisfy the target range.")
	fs.StringVar(&o.ArtifactName, flagArtifactName, in.GetInput(flagArtifactName),
		"The name of the workflow artifact to read when no release satisfies the target.")
	fs.StringVar(&o.ContainerPackage, flagContainerPackage, in.GetInput(flagContainerPackage),
		"The container package to read when no release asset matches the file pattern.")
	fs.BoolVar(&o.FailOnMissingTarget, flagFailOnMissingTarget, o.boolInput(in, flagFailOnMissingTarget, false),
		"Fail when there is nothing to download for the target.")
	fs.BoolVar(&o.WaitForExactTarget, flagWaitForExactTarget, o.boolInput(in, flagWaitForExactTarget, false),
		"Wait for the workflow runs at the target commit instead of falling back to parent commits.")
	fs.StringVar(&o.ContainerRegistry, flagContainerRegistry,
		inputOrDefault(in, flagContainerRegistry, defaultContainerRegistry),
		"The registry hosting the container package.")
	fs.StringVar(&o.RegistryCredentials, flagRegistryCredentials, in.GetInput(flagRegistryCredentials),
		"The registry credentials as a token or in the user:password format, anonymous access when empty.")
	fs.StringVar(&o.APIURL, flagAPIURL,
		inputOrDefault(in, flagAPIURL, envOrDefault(in, envAPIURL, defaultAPIURL)),
		"The base URL of the GitHub REST API.")
	fs.Int64Var(&o.RunID, flagRunID, o.int64Input(in, flagRunID, envRunID),
		"The ID of the workflow run this fetch is part of, its artifacts are never considered.")
	fs.StringVar(&o.OutputDir, flagOutputDir, inputOrDefault(in, flagOutputDir, defaultOutputDir),
		"The directory extracted files are written to.")
	fs.DurationVar(&o.PollInterval, flagPollInterval, o.durationInput(in, flagPollInterval, defaultPollInterval),
		"The delay between checks for workflow run completion.")
	fs.IntVar(&o.MaxPolls, flagMaxPolls, o.intInput(in, flagMaxPolls, 0),
		"The maximum number of checks for workflow run completion, 0 means no limit.")
	fs.DurationVar(&o.WaitTimeout, flagWaitTimeout, o.durationInput(in, flagWaitTimeout, 0),
		"The maximum time spent waiting for workflow runs, 0 means no limit.")
	fs.IntVar(&o.MaxParentDepth, flagMaxParentDepth, o.intInput(in, flagMaxParentDepth, defaultMaxParentDepth),
		"The maximum number of parent commits visited, 0 means no limit.")
	fs.IntVar(&o.HTTPRetries, flagHTTPRetries, o.intInput(in, flagHTTPRetries, defaultHTTPRetries),
		"The maximum number of retries of a failed HTTP request.")
}

func inputOrDefault(in Inputs, name, defaultValue string) string {
	if v := in.GetInput(name); v != "" {
		return v
	}
	return defaultValue
}

func envOrDefault(in Inputs, key, defaultValue string) string {
	if v := in.Getenv(key); v != "" {
		return v
	}
	return defaultValue
}

// The typed helpers below fall back to the default for malformed inputs
// and record the error for Validate.

func (o *Options) boolInput(in Inputs, name string, defaultValue bool) bool {
	v := in.GetInput(name)
	if v == "" {
		return defaultValue
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		o.inputErrs = append(o.inputErrs, fmt.Errorf("input %q: invalid boolean %q", name, v))
		return defaultValue
	}
	return b
}

func (o *Options) intInput(in Inputs, name string, defaultValue int) int {
	v := in.GetInput(name)
	if v == "" {
		return defaultValue
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		o.inputErrs = append(o.inputErrs, fmt.Errorf("input %q: invalid integer %q", name, v))
		return defaultValue
	}
	return i
}

func (o *Options) int64Input(in Inputs, name, env string) int64 {
	v := inputOrDefault(in, name, in.Getenv(env))
	if v == "" {
		return 0
	}
	i, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		o.inputErrs = append(o.inputErrs, fmt.Errorf("input %q: invalid integer %q", name, v))
		return 0
	}
	return i
}

func (o *Options) durationInput(in Inputs, name string, defaultValue time.Duration) time.Duration {
	v := in.GetInput(name)
	if v == "" {
		return defaultValue
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		o.inputErrs = append(o.inputErrs, fmt.Errorf("input %q: invalid duration %q", name, v))
		return defaultValue
	}
	return d
}
