package cmd

import (
	"context"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/jenkinstray/jenkinstray/internal/config"
	"github.com/jenkinstray/jenkinstray/internal/persistence"
)

var historyLimit int

func init() {
	HistoryListCmd.Flags().IntVar(&historyLimit, "limit", config.DefaultDisplayHistoryCount, "Maximum number of results to print.")

	HistoryCmd.AddCommand(HistoryListCmd, HistoryClearCmd)
	RootCmd.AddCommand(HistoryCmd)
}

var HistoryCmd = &cobra.Command{
	Use:   "history",
	Short: "Inspect stored job results",
}

var HistoryListCmd = &cobra.Command{
	Use:   "list",
	Short: "Print stored job results, oldest first",
	RunE: func(cmd *cobra.Command, args []string) error {
		repo, closeDB, err := openHistory(cmd.Context())
		if err != nil {
			return err
		}
		defer closeDB()

		items, err := repo.ListRecent(cmd.Context(), historyLimit)
		if err != nil {
			return err
		}
		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "RECEIVED\tPROJECT\tBUILD\tSTATUS\tRESULT")
		for _, e := range items {
			fmt.Fprintf(w, "%s\t%s\t%d\t%s\t%s\n", e.ReceivedAt.Format(time.DateTime), e.Project, e.BuildNumber, e.Status, e.Result)
		}

		return w.Flush()
	},
}

var HistoryClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Delete every stored job result",
	RunE: func(cmd *cobra.Command, args []string) error {
		repo, closeDB, err := openHistory(cmd.Context())
		if err != nil {
			return err
		}
		defer closeDB()

		if err := repo.Clear(cmd.Context()); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), "history cleared")

		return nil
	},
}

func openHistory(ctx context.Context) (*persistence.JobResultRepo, func(), error) {
	paths, err := resolvePaths()
	if err != nil {
		return nil, nil, err
	}
	db, err := persistence.Open(ctx, paths.DBFile)
	if err != nil {
		return nil, nil, err
	}

	return persistence.NewJobResultRepo(db), func() { _ = db.Close() }, nil
}
