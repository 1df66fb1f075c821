package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/raphaelgruber/memcapsule/internal/capsule"
)

// previewLen is the number of characters of each hit shown without --verbose.
const previewLen = 160

var flashbackK int

var flashbackCmd = &cobra.Command{
	Use:   "flashback <query>",
	Short: "Find past entries similar to a query",
	Long: `Find past entries whose meaning is closest to the query.

Results are ordered closest first. The score is a distance: lower is closer.

Examples:
  capsule flashback "times I felt grateful"
  capsule flashback -k 10 stress at work
  capsule flashback -v "learning something new"`,
	Args: cobra.MinimumNArgs(1),
	RunE: runFlashback,
}

func init() {
	flashbackCmd.Flags().IntVarP(&flashbackK, "limit", "k", capsule.DefaultFlashbackK, "number of entries to return (1-20)")
}

func runFlashback(cmd *cobra.Command, args []string) error {
	query := strings.Join(args, " ")

	hits, err := journal.Flashback(cmd.Context(), userID, query, flashbackK)
	if err != nil {
		return fmt.Errorf("flashback: %w", err)
	}

	out := cmd.OutOrStdout()
	theme := themeFor(out)
	if len(hits) == 0 {
		fmt.Fprintln(out, "No entries found.")
		return nil
	}

	fmt.Fprintf(out, "Flashbacks for %q (%d):\n\n", query, len(hits))
	for i, h := range hits {
		fmt.Fprintf(out, "%d. %s %s\n", i+1, theme.status(h.EntryID), theme.hint(fmt.Sprintf("(score %.4f)", h.Score)))
		content := h.Content
		if !verbose {
			content = preview(content, previewLen)
		}
		for _, line := range strings.Split(content, "\n") {
			fmt.Fprintf(out, "   %s\n", line)
		}
		fmt.Fprintln(out)
	}
	return nil
}

// preview collapses whitespace and shortens s to at most n runes.
func preview(s string, n int) string {
	s = strings.Join(strings.Fields(s), " ")
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-3]) + "..."
}
