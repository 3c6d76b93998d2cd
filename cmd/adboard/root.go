package main

import (
	"errors"
	"net/http"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/charlesng35/adboard/internal/workspacectx"
	"github.com/charlesng35/adboard/pkg/logger"
)

const defaultAPIURL = "http://localhost:8000"

type rootOptions struct {
	apiURL    string
	token     string
	statePath string
	verbose   bool
	timeout   time.Duration
}

func newRootCommand() *cobra.Command {
	opts := &rootOptions{}

	rootCmd := &cobra.Command{
		Use:           "adboard",
		Short:         "Manage adboard workspaces from the terminal",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if opts.verbose {
				return logger.InitWithOptions(logger.Options{Level: "debug", Format: "console"})
			}
			return nil
		},
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&opts.apiURL, "api-url", envOr("ADBOARD_API_URL", defaultAPIURL), "Base URL of the adboard API")
	flags.StringVar(&opts.token, "token", os.Getenv("ADBOARD_TOKEN"), "Bearer token issued by the identity provider")
	flags.StringVar(&opts.statePath, "state", os.Getenv("ADBOARD_STATE"), "Path of the local state file")
	flags.DurationVar(&opts.timeout, "timeout", 15*time.Second, "HTTP request timeout")
	flags.BoolVarP(&opts.verbose, "verbose", "v", false, "Log synchronizer activity to stderr")

	rootCmd.AddCommand(
		workspaceCommand(opts),
		logoutCommand(opts),
	)

	return rootCmd
}

func envOr(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

// synchronizer builds a Synchronizer over the HTTP API and the local state file.
func (o *rootOptions) synchronizer(requireToken bool) (*workspacectx.Synchronizer, *workspacectx.FileStore, error) {
	if requireToken && o.token == "" {
		return nil, nil, errors.New("not signed in: pass --token or set ADBOARD_TOKEN")
	}

	path := o.statePath
	if path == "" {
		var err error
		if path, err = workspacectx.DefaultStatePath(); err != nil {
			return nil, nil, err
		}
	}
	store, err := workspacectx.NewFileStore(path)
	if err != nil {
		return nil, nil, err
	}

	remote, err := workspacectx.NewHTTPRemote(o.apiURL, o.token, &http.Client{Timeout: o.timeout})
	if err != nil {
		return nil, nil, err
	}

	sync, err := workspacectx.NewSynchronizer(remote, store, workspacectx.WithLogger(logger.WithModule("cli")))
	if err != nil {
		return nil, nil, err
	}
	return sync, store, nil
}
