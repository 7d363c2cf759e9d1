package main

import (
	"context"
	"fmt"
	"text/tabwriter"
	"time"

	"screening-map/internal/migrate"
	"screening-map/internal/store"
	"screening-map/internal/utils"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
)

// openStore：按 DB_DRIVER / PG_* / SQLITE_PATH 打开数据库并确保表结构
func openStore(ctx context.Context) (*store.Store, error) {
	db, driver, err := utils.OpenFromEnv()
	if err != nil {
		return nil, err
	}
	if err := migrate.EnsureSchema(ctx, db, driver); err != nil {
		db.Close()
		return nil, err
	}
	return store.AttachDB(db, driver), nil
}

func newImportCmd() *cobra.Command {
	var statsPath string
	cmd := &cobra.Command{
		Use:   "import <records.json|->",
		Short: "Append raw records (and optionally neighborhood stats) to the database",
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
			ctx := cmd.Context()
			st, err := openStore(ctx)
			if err != nil {
				return err
			}
			defer st.Close()
			start := time.Now()
			if err := st.AddRecords(ctx, recs); err != nil {
				return err
			}
			if len(stats) > 0 {
				if err := st.UpsertStats(ctx, stats); err != nil {
					return err
				}
			}
			fmt.Fprintf(cmd.OutOrStdout(), "imported %s records, %s stats in %s\n",
				humanize.Comma(int64(len(recs))), humanize.Comma(int64(len(stats))), time.Since(start).Round(time.Millisecond))
			return nil
		},
	}
	cmd.Flags().StringVar(&statsPath, "stats", "", "neighborhood stats JSON to upsert")
	return cmd
}

func newTicketsCmd() *cobra.Command {
	var batch string
	cmd := &cobra.Command{
		Use:   "tickets --batch <id>",
		Short: "Show tickets written by one selection confirm",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			st, err := openStore(ctx)
			if err != nil {
				return err
			}
			defer st.Close()
			ts, err := st.TicketsByBatch(ctx, batch)
			if err != nil {
				return err
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tLOCATION\tSCREENED\tPOSITIVE\tSAVED\tCREATED")
			for _, t := range ts {
				fmt.Fprintf(tw, "%d\t%d\t%s\t%s\t%t\t%s\n", t.ID, t.ScreeningLocationID,
					humanize.Comma(t.ScreenedCount), humanize.Comma(t.PositiveCount), t.Saved, humanize.Time(t.CreatedAt))
			}
			return tw.Flush()
		},
	}
	cmd.Flags().StringVar(&batch, "batch", "", "confirm batch id")
	_ = cmd.MarkFlagRequired("batch")
	return cmd
}
