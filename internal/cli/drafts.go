package cli

import (
	"fmt"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
)

var draftsPruneOlderThan time.Duration

func init() {
	rootCmd.AddCommand(draftsCmd)
	draftsCmd.AddCommand(draftsListCmd)
	draftsCmd.AddCommand(draftsPruneCmd)

	draftsPruneCmd.Flags().DurationVar(&draftsPruneOlderThan, "older-than", 30*24*time.Hour, "remove drafts not edited within this duration")
}

var draftsCmd = &cobra.Command{
	Use:   "drafts",
	Short: "Manage unsent drafts",
	Long:  "Drafts keep composer text per thread between sessions. They are never sent automatically.",
}

var draftsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List saved drafts",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		a, err := newApp(ctx, appOptions{database: true})
		if err != nil {
			return err
		}
		defer a.Close()

		drafts, err := a.drafts.List(ctx)
		if err != nil {
			return err
		}
		if IsJSONOutput() || IsJSONLOutput() {
			return WriteOutput(cmd.OutOrStdout(), drafts)
		}
		if len(drafts) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "No drafts.")
			return nil
		}

		t := newTable("THREAD", "EDITED", "TEXT")
		t.maxWidth = 60
		for _, d := range drafts {
			t.add(d.ThreadID, humanize.Time(d.UpdatedAt), d.Text)
		}
		return t.write(cmd.OutOrStdout())
	},
}

var draftsPruneCmd = &cobra.Command{
	Use:   "prune",
	Short: "Remove stale drafts",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if draftsPruneOlderThan <= 0 {
			return fmt.Errorf("--older-than must be positive")
		}
		ctx := cmd.Context()
		a, err := newApp(ctx, appOptions{database: true})
		if err != nil {
			return err
		}
		defer a.Close()

		removed, err := a.drafts.Prune(ctx, draftsPruneOlderThan)
		if err != nil {
			return err
		}
		if IsJSONOutput() || IsJSONLOutput() {
			return WriteOutput(cmd.OutOrStdout(), map[string]int64{"removed": removed})
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Removed %d draft(s).\n", removed)
		return nil
	},
}
