package main

import (
	"encoding/json"

	"github.com/spf13/cobra"

	"github.com/aymericbeaumet/loupe/domain/graph"
	"github.com/aymericbeaumet/loupe/infrastructure/di"
	apperrors "github.com/aymericbeaumet/loupe/pkg/errors"
)

type elementsOutput struct {
	Query    string              `json:"query"`
	Elements []graph.ElementJSON `json:"elements"`
	Stats    graph.Stats         `json:"stats"`
}

func newElementsCmd(root *rootOptions) *cobra.Command {
	var rooted bool

	cmd := &cobra.Command{
		Use:   "elements <query>",
		Short: "Print the graph elements built for a query as JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := root.load()
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("rooted") {
				cfg.Backend.Rooted = rooted
			}

			container, cleanup, err := di.InitializeContainer(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer cleanup()

			payload, err := container.Fetcher.Fetch(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			elements, err := graph.BuildElements(payload)
			if err != nil {
				return apperrors.NewMalformedError("trie fragment", err)
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(elementsOutput{
				Query:    args[0],
				Elements: graph.EncodeAll(elements),
				Stats:    graph.Summarize(elements),
			})
		},
	}
	cmd.Flags().BoolVar(&rooted, "rooted", false, "ask for the single subtree at the query")
	return cmd
}
