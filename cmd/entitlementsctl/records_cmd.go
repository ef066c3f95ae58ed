package main

import (
	"fmt"
	"time"

	"github.com/goliatone/go-entitlements/core"
	entquery "github.com/goliatone/go-entitlements/query"
	"github.com/spf13/cobra"
)

func newRecordsCmd(opts *globalOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "records",
		Short: "Inspect and prune persisted execution records",
	}
	cmd.AddCommand(newRecordsListCmd(opts), newRecordsPruneCmd(opts))
	return cmd
}

func newRecordsListCmd(opts *globalOptions) *cobra.Command {
	var (
		filter core.ExecutionRecordFilter
		level  string
		since  time.Duration
	)
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List execution records, newest first",
		RunE: func(cmd *cobra.Command, _ []string) error {
			rt, err := openAudit(cmd.Context(), opts)
			if err != nil {
				return err
			}
			defer rt.Close()

			filter.Level = core.ExecutionLevel(level)
			if since > 0 {
				from := time.Now().UTC().Add(-since)
				filter.From = &from
			}
			page, err := entquery.NewListExecutionRecordsQuery(rt.records).Query(cmd.Context(), entquery.ListExecutionRecordsMessage{Filter: filter})
			if err != nil {
				return err
			}
			if err := writeRecords(cmd.OutOrStdout(), opts.output, page.Items); err != nil {
				return err
			}
			if opts.output != "json" && page.HasNext {
				fmt.Fprintf(cmd.ErrOrStderr(), "%d of %d shown, next page: %s\n", len(page.Items), page.Total, page.NextCursor)
			}
			return nil
		},
	}
	flags := cmd.Flags()
	flags.StringVar(&filter.ExecutionID, "execution-id", "", "Filter by execution id")
	flags.StringVar(&filter.Task, "task", "", "Filter by task name")
	flags.StringVar(&filter.Domain, "domain", "", "Filter by domain")
	flags.StringVar(&filter.Status, "status", "", "Filter by status")
	flags.StringVar(&level, "level", "", "Filter by level (info, error)")
	flags.DurationVar(&since, "since", 0, "Only records newer than this duration")
	flags.IntVar(&filter.Page, "page", 1, "Page number")
	flags.IntVar(&filter.PerPage, "per-page", 50, "Records per page")
	return cmd
}

func newRecordsPruneCmd(opts *globalOptions) *cobra.Command {
	var (
		ttl    time.Duration
		rowCap int
	)
	cmd := &cobra.Command{
		Use:   "prune",
		Short: "Delete records older than the retention window or beyond the row cap",
		RunE: func(cmd *cobra.Command, _ []string) error {
			rt, err := openAudit(cmd.Context(), opts)
			if err != nil {
				return err
			}
			defer rt.Close()

			policy := core.RecordRetentionPolicy{TTL: ttl, RowCap: rowCap}
			if !cmd.Flags().Changed("ttl") {
				policy.TTL = rt.cfg.Audit.Retention()
			}
			deleted, err := rt.records.Prune(cmd.Context(), policy)
			if err != nil {
				return err
			}
			rt.logger.Info("pruned execution records", "deleted", deleted, "ttl", policy.TTL.String(), "row_cap", policy.RowCap)
			fmt.Fprintf(cmd.OutOrStdout(), "deleted %d record(s)\n", deleted)
			return nil
		},
	}
	cmd.Flags().DurationVar(&ttl, "ttl", 0, "Retention window (defaults to audit.retention_days)")
	cmd.Flags().IntVar(&rowCap, "row-cap", 0, "Keep at most this many newest records (0 disables)")
	return cmd
}
