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

package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/go-logr/logr"
	"github.com/sethvargo/go-githubactions"
	"github.com/spf13/cobra"

	"github.com/fluxcd/artifact-fetcher/config"
	"github.com/fluxcd/artifact-fetcher/github"
	"github.com/fluxcd/artifact-fetcher/http/fetch"
	"github.com/fluxcd/artifact-fetcher/logger"
	"github.com/fluxcd/artifact-fetcher/masktoken"
	"github.com/fluxcd/artifact-fetcher/oci"
	"github.com/fluxcd/artifact-fetcher/resolver"
	"github.com/fluxcd/artifact-fetcher/storage"
	"github.com/fluxcd/artifact-fetcher/unzip"
)

const outputDownloadedFile = "downloaded-file"

var (
	action  = githubactions.New()
	opts    config.Options
	logOpts logger.Options
)

var rootCmd = &cobra.Command{
	Use:   "fetch-artifact",
	Short: "Download a file from a GitHub release, container image or workflow artifact",
	Long: `Resolve a semver range to a GitHub release, or a git reference to the workflow
artifact of its most recent successful build, and extract the files matching a pattern.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          runFetch,
}

func init() {
	opts.BindFlags(rootCmd.Flags(), action)
	logOpts.BindFlags(rootCmd.Flags())
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		action.Fatalf("%s", masktoken.Mask(err.Error(), opts.Token, opts.RegistryCredentials))
	}
}

func runFetch(cmd *cobra.Command, _ []string) error {
	action.SetOutput(outputDownloadedFile, "")

	if err := opts.Validate(); err != nil {
		return err
	}
	for _, secret := range []string{opts.Token, opts.RegistryCredentials} {
		if secret != "" {
			action.AddMask(secret)
		}
	}

	log := logger.NewLogger(logOpts)
	res, err := fetchTarget(cmd.Context(), &opts, log)
	if err != nil {
		return masktoken.Error(err, opts.Token, opts.RegistryCredentials)
	}

	downloaded, err := reportedPath(opts.OutputDir, res.Path)
	if err != nil {
		return err
	}
	action.SetOutput(outputDownloadedFile, downloaded)
	return nil
}

// reportedPath returns p relative to the output dir as given, so that with
// the default output dir the archive-relative name is reported.
func reportedPath(outputDir, p string) (string, error) {
	if p == "" {
		return "", nil
	}
	base, err := filepath.Abs(outputDir)
	if err != nil {
		return "", err
	}
	rel, err := filepath.Rel(base, p)
	if err != nil {
		return "", fmt.Errorf("failed to report %s: %w", p, err)
	}
	return filepath.Join(outputDir, rel), nil
}

// fetchTarget wires the clients for the validated options and runs the
// fetcher.
func fetchTarget(ctx context.Context, o *config.Options, log logr.Logger) (*resolver.Result, error) {
	fc := fetch.NewClient(
		fetch.WithToken(o.Token),
		fetch.WithRetries(o.HTTPRetries),
		fetch.WithLogger(log.WithName("http")),
	)

	gh, err := github.New(o.Owner, o.Repository,
		github.WithToken(o.Token),
		github.WithBaseURL(o.APIURL),
		github.WithHTTPClient(fc.StandardClient()),
		github.WithLogger(log.WithName("github")),
	)
	if err != nil {
		return nil, err
	}

	registry := oci.NewClient(oci.WithRegistry(o.ContainerRegistry))
	if o.RegistryCredentials != "" {
		if err := registry.LoginWithCredentials(o.RegistryCredentials); err != nil {
			return nil, fmt.Errorf("failed to configure registry credentials: %w", err)
		}
	}

	store, err := storage.New(o.OutputDir)
	if err != nil {
		return nil, err
	}
	unlock, err := store.Lock()
	if err != nil {
		return nil, fmt.Errorf("failed to lock %s: %w", store.BasePath, err)
	}
	defer unlock()

	f := &resolver.Fetcher{
		Options: resolver.Options{
			Owner:               o.Owner,
			File:                o.FilePattern(),
			Target:              o.Target,
			Prereleases:         o.Prereleases,
			ArtifactName:        o.ArtifactName,
			ContainerPackage:    o.ContainerPackage,
			FailOnMissingTarget: o.FailOnMissingTarget,
			WaitForExactTarget:  o.WaitForExactTarget,
			RunID:               o.RunID,
			PollInterval:        o.PollInterval,
			MaxPolls:            o.MaxPolls,
			WaitTimeout:         o.WaitTimeout,
			MaxParentDepth:      o.MaxParentDepth,
		},
		Platform: gh,
		Registry: registry,
		Sources: func(url string) unzip.Source {
			return fc.RangeSource(url)
		},
		Storage: store,
		Log:     log,
	}
	return f.Run(ctx)
}
