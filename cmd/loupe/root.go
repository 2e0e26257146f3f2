package main

import (
	"github.com/spf13/cobra"

	"github.com/aymericbeaumet/loupe/infrastructure/config"
)

type rootOptions struct {
	configPath string
	logLevel   string
	backendURL string
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:   "loupe",
		Short: "Visualize trie fragments as interactive graphs",
		Long: `loupe queries a trie index, either a remote search backend or its own
embedded development index, and renders the returned fragments as graphs of
byte nodes and records.`,
		SilenceUsage: true,
	}

	flags := cmd.PersistentFlags()
	flags.StringVarP(&opts.configPath, "config", "c", "", "configuration file (default $"+config.FileEnv+")")
	flags.StringVar(&opts.logLevel, "log-level", "", "log level: debug, info, warn or error")
	flags.StringVar(&opts.backendURL, "backend", "", "base URL of the trie service (default: embedded index)")

	cmd.AddCommand(
		newServeCmd(opts),
		newExploreCmd(opts),
		newElementsCmd(opts),
	)
	return cmd
}

// load reads the configuration and applies the command line overrides.
func (o *rootOptions) load() (*config.Config, error) {
	var (
		cfg *config.Config
		err error
	)
	if o.configPath != "" {
		cfg, err = config.LoadFile(o.configPath)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return nil, err
	}

	if o.logLevel != "" {
		cfg.LogLevel = o.logLevel
	}
	if o.backendURL != "" {
		cfg.Backend.URL = o.backendURL
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}
