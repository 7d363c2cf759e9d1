package main

import (
	"encoding/json"

	"screening-map/internal/site"

	"github.com/spf13/cobra"
)

func newAggregateCmd() *cobra.Command {
	var statsPath string
	var indent bool
	cmd := &cobra.Command{
		Use:   "aggregate <records.json|->",
		Short: "Merge raw dated records into one canonical entry per site",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			recs, err := readRecords(args[0], cmd.InOrStdin())
			if err != nil {
				return err
			}
			stats, err := readStats(statsPath)
			if err != nil {
				return err
			}
			entries := site.Sorted(site.AttachStats(site.Aggregate(recs), stats))
			enc := json.NewEncoder(cmd.OutOrStdout())
			if indent {
				enc.SetIndent("", "  ")
			}
			return enc.Encode(entries)
		},
	}
	cmd.Flags().StringVar(&statsPath, "stats", "", "neighborhood stats JSON to join by zona_id")
	cmd.Flags().BoolVar(&indent, "indent", false, "pretty-print output")
	return cmd
}
