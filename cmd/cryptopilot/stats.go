package main

import (
	"fmt"
	"maps"
	"slices"
	"text/tabwriter"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show queue sizes and tracked tweets from the saved state",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := openState(cmd.Context(), false)
		if err != nil {
			return err
		}
		defer st.close()

		out := cmd.OutOrStdout()
		stats := st.queues.Stats()
		w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "QUEUE\tPENDING\tCOMPLETED")
		for _, name := range slices.Sorted(maps.Keys(stats)) {
			s := stats[name]
			fmt.Fprintf(w, "%s\t%d\t%d\n", color.CyanString(name), s.Pending, s.Completed)
		}
		if err := w.Flush(); err != nil {
			return err
		}

		fmt.Fprintf(out, "\nTracked tweets: %s\n", color.GreenString("%d", st.tracker.TweetCount()))
		if !st.cursor.IsZero() {
			fmt.Fprintf(out, "Mentions checked until: %s\n", st.cursor.Format("2006-01-02 15:04:05 MST"))
		}
		comments := st.tracker.CommentStats()
		if len(comments) == 0 {
			return nil
		}
		fmt.Fprintln(out, "Comments per tweet:")
		for _, id := range slices.Sorted(maps.Keys(comments)) {
			c := comments[id]
			fmt.Fprintf(out, "  %s: %d/%d\n", id, c.Count, c.Limit)
		}
		return nil
	},
}
