package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/raphaelgruber/memcapsule/internal/streak"
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show journaling statistics",
	Long: `Show the number of days journaled, the current streak and earned badges.

Examples:
  capsule stats
  capsule stats -u alice`,
	Args: cobra.NoArgs,
	RunE: runStats,
}

func runStats(cmd *cobra.Command, args []string) error {
	stats, err := journal.Stats(cmd.Context(), userID)
	if err != nil {
		return fmt.Errorf("stats: %w", err)
	}

	out := cmd.OutOrStdout()
	theme := themeFor(out)

	fmt.Fprintf(out, "Journal of %s\n", userID)
	fmt.Fprintf(out, "═══════════════════════════════════════\n")
	fmt.Fprintf(out, "Days journaled: %d\n", stats.TotalEntries)
	fmt.Fprintf(out, "Current streak: %s\n", theme.success(fmt.Sprintf("%d %s", stats.Streak, dayWord(stats.Streak))))

	if len(stats.Badges) == 0 {
		fmt.Fprintf(out, "Badges:         %s\n", theme.hint("none yet"))
	} else {
		fmt.Fprintf(out, "Badges:\n")
		for _, b := range stats.Badges {
			fmt.Fprintf(out, "  %s %s\n", theme.badge("★"), b)
		}
	}

	if next, ok := nextMilestone(stats.Streak); ok {
		fmt.Fprintln(out, theme.hint(fmt.Sprintf("%d more %s to %s", next.Days-stats.Streak, dayWord(next.Days-stats.Streak), next.Badge)))
	}
	return nil
}

// nextMilestone is the smallest milestone above streak.
func nextMilestone(streakLen int) (streak.Milestone, bool) {
	for _, m := range streak.Milestones {
		if m.Days > streakLen {
			return m, true
		}
	}
	return streak.Milestone{}, false
}
