package main

import (
	"fmt"
	"io"
	"text/tabwriter"

	"screening-map/internal/filter"
	"screening-map/internal/ranking"
	"screening-map/internal/site"
	"screening-map/internal/zones"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
)

type filterFlags struct {
	zonesPath   string
	statsPath   string
	presetsPath string
	preset      string
	names       []string
	zonas       []string
	locs        []string
	types       []string
	yieldMin    float64
	yieldMax    float64
	rank        string
	limit       int
}

func newFilterCmd() *cobra.Command {
	var f filterFlags
	cmd := &cobra.Command{
		Use:   "filter <records.json|->",
		Short: "Print the ranked visible list for the given criteria",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := f.criteria(cmd)
			if err != nil {
				return err
			}
			recs, err := readRecords(args[0], cmd.InOrStdin())
			if err != nil {
				return err
			}
			stats, err := readStats(f.statsPath)
			if err != nil {
				return err
			}
			ix := readZones(cmd.Context(), f.zonesPath, zones.ParseOptions{})
			all := site.Sorted(site.AttachStats(site.Aggregate(recs), stats))
			visible := filter.Apply(all, c, ix)
			return printTable(cmd.OutOrStdout(), visible, len(all), ix, f.limit)
		},
	}
	fl := cmd.Flags()
	fl.StringVar(&f.zonesPath, "zones", "", "zone GeoJSON used for names")
	fl.StringVar(&f.statsPath, "stats", "", "neighborhood stats JSON")
	fl.StringVar(&f.presetsPath, "presets", "", "YAML presets file")
	fl.StringVar(&f.preset, "preset", "", "preset name to start from")
	fl.StringSliceVar(&f.names, "name", nil, "zone name substrings (OR)")
	fl.StringSliceVar(&f.zonas, "zona", nil, "zona id prefixes (OR)")
	fl.StringSliceVar(&f.locs, "loc", nil, "screening location id prefixes (OR)")
	fl.StringSliceVar(&f.types, "type", nil, "site types (OR)")
	fl.Float64Var(&f.yieldMin, "yield-min", 0, "minimum yield percent")
	fl.Float64Var(&f.yieldMax, "yield-max", 100, "maximum yield percent")
	fl.StringVar(&f.rank, "rank", "", "none|by_screened|by_diagnosed|by_yield")
	fl.IntVar(&f.limit, "limit", 0, "print at most N rows (0 = all)")
	return cmd
}

// criteria：preset 为基础，命令行上显式给出的参数覆盖对应维度
func (f *filterFlags) criteria(cmd *cobra.Command) (filter.Criteria, error) {
	c := filter.Default()
	if f.preset != "" {
		presets, err := filter.LoadPresets(f.presetsPath)
		if err != nil {
			return c, err
		}
		p, ok := presets.Get(f.preset)
		if !ok {
			return c, fmt.Errorf("unknown preset %q", f.preset)
		}
		c = p
	}
	fl := cmd.Flags()
	if fl.Changed("name") {
		c.NameTokens = filter.Tokens(f.names...)
	}
	if fl.Changed("zona") {
		c.ZonaIDTokens = filter.Tokens(f.zonas...)
	}
	if fl.Changed("loc") {
		c.LocationIDTokens = filter.Tokens(f.locs...)
	}
	if fl.Changed("type") {
		c.SelectedTypes = filter.Tokens(f.types...)
	}
	if fl.Changed("yield-min") {
		c.YieldMin = f.yieldMin
	}
	if fl.Changed("yield-max") {
		c.YieldMax = f.yieldMax
	}
	if fl.Changed("rank") {
		m, err := ranking.ParseMode(f.rank)
		if err != nil {
			return c, err
		}
		c.Rank = m
	}
	return c, c.Validate()
}

func printTable(w io.Writer, entries []site.Entry, total int, names filter.Names, limit int) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "KEY\tZONA\tZONE\tTYPE\tSCREENED\tDIAGNOSED\tYIELD")
	for i, e := range entries {
		if limit > 0 && i >= limit {
			break
		}
		fmt.Fprintf(tw, "%s\t%d\t%s\t%s\t%s\t%s\t%.1f%%\n",
			e.Key, e.ZoneID, names.Name(e.ZoneID), e.SiteType,
			humanize.Comma(e.TotalScreened), humanize.Comma(e.TotalDiagnosed), site.YieldRatio(e))
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	_, err := fmt.Fprintf(w, "%s of %s sites\n", humanize.Comma(int64(len(entries))), humanize.Comma(int64(total)))
	return err
}
