package main

import (
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"drivesync/internal/report"
)

func newReportCommand(ctx *commandContext) *cobra.Command {
	reportCmd := &cobra.Command{
		Use:   "report",
		Short: "Inspect archived sync sessions",
	}

	reportCmd.AddCommand(newReportListCommand(ctx))
	reportCmd.AddCommand(newReportShowCommand(ctx))
	reportCmd.AddCommand(newReportPruneCommand(ctx))

	return reportCmd
}

func (c *commandContext) withReportStore(fn func(*report.Store) error) error {
	cfg, err := c.ensureConfig()
	if err != nil {
		return err
	}
	store, err := report.Open(cfg)
	if err != nil {
		return fmt.Errorf("open report archive: %w", err)
	}
	defer store.Close()
	return fn(store)
}

func newReportListCommand(ctx *commandContext) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List archived sessions, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withReportStore(func(store *report.Store) error {
				reports, err := store.List(cmd.Context(), limit)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				if len(reports) == 0 {
					fmt.Fprintln(out, "No archived sessions.")
					return nil
				}
				rows := make([][]string, 0, len(reports))
				for _, rep := range reports {
					rows = append(rows, []string{
						rep.SessionID,
						rep.StartedAt.Local().Format(time.DateTime),
						string(rep.FinalPhase),
						strconv.Itoa(rep.Matched),
						strconv.Itoa(rep.TransferredToPhotos),
						strconv.Itoa(rep.TransferredToDrive),
						strconv.Itoa(rep.FailedTransfers),
					})
				}
				fmt.Fprintln(out, renderTable(
					[]column{
						textColumn("Session"), textColumn("Started"), textColumn("Phase"),
						numericColumn("Matched"), numericColumn("To Photos"),
						numericColumn("To Drive"), numericColumn("Failed"),
					},
					rows,
				))
				return nil
			})
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Maximum sessions to list (0 for all)")
	return cmd
}

func newReportShowCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "show <session-id>",
		Short: "Show one archived session and its transfers",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withReportStore(func(store *report.Store) error {
				rep, tasks, err := store.Get(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "Session %s (%s, started %s)\n",
					rep.SessionID, rep.FinalPhase, rep.StartedAt.Local().Format(time.DateTime))
				fmt.Fprintln(out, renderReportTable(rep))
				if len(tasks) == 0 {
					return nil
				}
				rows := make([][]string, 0, len(tasks))
				for _, task := range tasks {
					rows = append(rows, []string{
						task.ItemName,
						task.Direction,
						task.Status,
						strconv.Itoa(task.Attempts),
						task.Err,
					})
				}
				fmt.Fprintln(out, renderTable(
					[]column{
						textColumn("Item"), textColumn("Direction"), textColumn("Status"),
						numericColumn("Attempts"), textColumn("Error"),
					},
					rows,
				))
				return nil
			})
		},
	}
}

func newReportPruneCommand(ctx *commandContext) *cobra.Command {
	var keep int

	cmd := &cobra.Command{
		Use:   "prune",
		Short: "Delete all but the newest archived sessions",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withReportStore(func(store *report.Store) error {
				removed, err := store.Prune(cmd.Context(), keep)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Removed %d archived sessions (kept newest %d).\n", removed, keep)
				return nil
			})
		},
	}

	cmd.Flags().IntVar(&keep, "keep", 25, "Number of newest sessions to keep")
	return cmd
}
