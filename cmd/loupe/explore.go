package main

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/aymericbeaumet/loupe/application/view"
	"github.com/aymericbeaumet/loupe/infrastructure/di"
	"github.com/aymericbeaumet/loupe/interfaces/tui"
)

func newExploreCmd(root *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "explore [query]",
		Short: "Explore trie fragments in the terminal",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := root.load()
			if err != nil {
				return err
			}
			view.Init()

			container, cleanup, err := di.InitializeContainer(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer cleanup()

			// The terminal belongs to the explorer from here on.
			container.Level.SetLevel(zap.FatalLevel)

			var query string
			if len(args) == 1 {
				query = args[0]
			}
			return tui.Run(cmd.Context(), container.Fetcher, query, container.Sessions...)
		},
	}
}
