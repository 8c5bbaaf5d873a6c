package main

import (
	"fmt"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/aatumaykin/cryptopilot/internal/app"
)

var scheduleShowCompleted bool

var scheduleCmd = &cobra.Command{
	Use:   "schedule",
	Short: "Manage the saved schedule",
	Long:  `Import seed files into the saved state and list scheduled actions. Stop the agent before importing.`,
}

var scheduleImportCmd = &cobra.Command{
	Use:   "import <seed.yaml>",
	Short: "Import posts and polls from a YAML seed file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		st, err := openState(ctx, true)
		if err != nil {
			return err
		}
		defer st.close()

		posts, polls, err := app.ImportSeed(st.queues, args[0])
		if err != nil {
			return fmt.Errorf("failed to import %s: %w", args[0], err)
		}
		if err := st.save(ctx); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s imported %d posts and %d polls\n", color.GreenString("✓"), posts, polls)
		return nil
	},
}

var scheduleListCmd = &cobra.Command{
	Use:   "list",
	Short: "List scheduled actions",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := openState(cmd.Context(), false)
		if err != nil {
			return err
		}
		defer st.close()

		now := time.Now().UTC()
		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "KIND\tID\tSCHEDULED\tSTATUS\tDETAILS")
		row := func(kind, id string, at time.Time, completed bool, details string) {
			if completed && !scheduleShowCompleted {
				return
			}
			status := color.CyanString("pending")
			switch {
			case completed:
				status = color.GreenString("done")
			case !at.After(now):
				status = color.YellowString("due")
			}
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", kind, shortID(id), at.Format(time.RFC3339), status, clip(details, 60))
		}

		q := st.queues
		for _, p := range q.Posts.All() {
			details := p.Content
			if p.WantsMedia() {
				details = "[" + string(p.MediaType) + "] " + details
			}
			row("post", p.ID, p.ScheduledTime, p.Completed, details)
		}
		for _, p := range q.Polls.All() {
			row("poll", p.ID, p.ScheduledTime, p.Completed, p.Question+" "+strings.Join(p.Options, " | "))
		}
		for _, r := range q.Retweets.All() {
			row("retweet", r.ID, r.ScheduledTime, r.Completed, "@"+r.SourceAcc+" "+r.TweetID)
		}
		for _, c := range q.Comments.All() {
			row("comment", c.ID, c.ScheduledTime, c.Completed, c.TweetID+" "+c.CommentText)
		}
		return w.Flush()
	},
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func clip(s string, n int) string {
	s = strings.Join(strings.Fields(s), " ")
	if r := []rune(s); len(r) > n {
		return string(r[:n-1]) + "…"
	}
	return s
}

func init() {
	scheduleListCmd.Flags().BoolVarP(&scheduleShowCompleted, "all", "a", false, "Include completed actions")
	scheduleCmd.AddCommand(scheduleImportCmd)
	scheduleCmd.AddCommand(scheduleListCmd)
}
