package main

import (
	"fmt"
	"text/tabwriter"

	"screening-map/internal/zones"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
)

func newZonesCmd() *cobra.Command {
	var opts zones.ParseOptions
	cmd := &cobra.Command{
		Use:   "zones <zones.geojson|->",
		Short: "List zone ids and names from a GeoJSON feed",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			b, err := readInput(args[0], cmd.InOrStdin())
			if err != nil {
				return err
			}
			ix, skipped, err := zones.Parse(b, opts)
			if err != nil {
				return err
			}
			pal := zones.NewPalette(ix.IDs(), nil)
			out := cmd.OutOrStdout()
			tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ZONA\tNAME\tCOLOR")
			for _, id := range ix.IDs() {
				fmt.Fprintf(tw, "%d\t%s\t%s\n", id, ix.Name(id), pal.Color(id))
			}
			if err := tw.Flush(); err != nil {
				return err
			}
			fmt.Fprintf(out, "%s zones (%s features skipped, %s)\n",
				humanize.Comma(int64(ix.Len())), humanize.Comma(int64(skipped)), humanize.Bytes(uint64(len(b))))
			return nil
		},
	}
	cmd.Flags().StringVar(&opts.IDProperty, "id-property", "zona_id", "feature property holding the zone id")
	cmd.Flags().StringVar(&opts.NameProperty, "name-property", "zone_name", "feature property holding the zone name")
	return cmd
}
