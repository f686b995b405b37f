package cli

import (
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/andertben/skillspot-chat/internal/directory"
	"github.com/andertben/skillspot-chat/internal/models"
)

const threadsPreviewWidth = 40

func init() {
	rootCmd.AddCommand(threadsCmd)
	rootCmd.AddCommand(unreadCmd)
}

var threadsCmd = &cobra.Command{
	Use:     "threads",
	Aliases: []string{"ls"},
	Short:   "List your conversations",
	Long:    "List conversations with their last message and unread count, most recent first.",
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		a, err := newApp(ctx, appOptions{})
		if err != nil {
			return err
		}
		defer a.Close()

		rows, err := a.client.ListThreads(ctx)
		if err != nil {
			return describeError("list threads", err)
		}

		if IsJSONOutput() || IsJSONLOutput() {
			return WriteOutput(cmd.OutOrStdout(), rows)
		}
		return writeThreads(cmd.OutOrStdout(), rows, a.cfg.Directory.BadgeCap, time.Now())
	},
}

func writeThreads(out io.Writer, rows []models.ThreadSummary, badgeCap int, now time.Time) error {
	if len(rows) == 0 {
		_, err := fmt.Fprintln(out, "No conversations yet.")
		return err
	}
	t := newTable("THREAD", "TITLE", "WITH", "UNREAD", "LAST", "PREVIEW")
	for _, row := range rows {
		unread := directory.FormatBadge(row.UnreadCount, badgeCap)
		if unread == "" {
			unread = "-"
		}
		last := directory.RelativeTime(row.LastMessageAt, now)
		if last == "" {
			last = "-"
		}
		t.add(row.ThreadID, row.Title(), row.CounterpartName, unread, last, directory.Preview(row, threadsPreviewWidth))
	}
	return t.write(out)
}

var unreadCmd = &cobra.Command{
	Use:   "unread",
	Short: "Show the total unread count",
	Long:  "Show the total number of unread messages across all conversations, as rendered in the navigation badge.",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		a, err := newApp(ctx, appOptions{})
		if err != nil {
			return err
		}
		defer a.Close()

		count, err := a.client.UnreadCount(ctx)
		if err != nil {
			return describeError("unread count", err)
		}

		label := directory.FormatBadge(count, a.cfg.Directory.BadgeCap)
		if IsJSONOutput() || IsJSONLOutput() {
			return WriteOutput(cmd.OutOrStdout(), map[string]any{"count": count, "badge": label})
		}
		if label == "" {
			label = "0"
		}
		_, err = fmt.Fprintln(cmd.OutOrStdout(), label)
		return err
	},
}
