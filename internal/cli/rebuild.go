package cli

import (
	"context"
	"fmt"
	"sync"

	"github.com/spf13/cobra"

	"github.com/raphaelgruber/memcapsule/internal/capsule"
)

var (
	rebuildAll      bool
	rebuildParallel int
)

var rebuildCmd = &cobra.Command{
	Use:   "rebuild",
	Short: "Re-derive streaks and the search index from the entry log",
	Long: `Rebuild recomputes streak data and re-embeds every entry from the stored log.

Use it after switching embedding models or when a save reported a warning.
Earned badges are kept.

Examples:
  capsule rebuild
  capsule rebuild -u alice
  capsule rebuild --all --parallel 8`,
	Args: cobra.NoArgs,
	RunE: runRebuild,
}

func init() {
	rebuildCmd.Flags().BoolVar(&rebuildAll, "all", false, "rebuild every user (local store only)")
	rebuildCmd.Flags().IntVar(&rebuildParallel, "parallel", 4, "users rebuilt concurrently with --all")
}

func runRebuild(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()
	theme := themeFor(out)

	if !rebuildAll {
		n, err := journal.Rebuild(cmd.Context(), userID)
		if err != nil {
			return fmt.Errorf("rebuild: %w", err)
		}
		fmt.Fprintf(out, "%s %d entries for %s\n", theme.success("Rebuilt"), n, userID)
		return nil
	}

	a, err := requireLocal()
	if err != nil {
		return err
	}
	users, err := a.Users(cmd.Context())
	if err != nil {
		return fmt.Errorf("list users: %w", err)
	}
	if len(users) == 0 {
		fmt.Fprintln(out, "No users found.")
		return nil
	}

	rebuild := func(ctx context.Context, onDone func(string, int, error)) (int, error) {
		return a.Store.RebuildAll(ctx, users, rebuildParallel, capsule.RebuildProgress(onDone))
	}

	if isTerminal(out) {
		return runRebuildProgress(cmd.Context(), len(users), rebuild)
	}

	var mu sync.Mutex
	total, err := rebuild(cmd.Context(), func(user string, n int, err error) {
		mu.Lock()
		defer mu.Unlock()
		if err != nil {
			fmt.Fprintf(out, "  %s %s: %v\n", theme.failure("✗"), user, err)
			return
		}
		fmt.Fprintf(out, "  %s %s (%d entries)\n", theme.success("✓"), user, n)
	})
	if err != nil {
		return fmt.Errorf("rebuild: %w", err)
	}
	fmt.Fprintf(out, "Rebuilt %d users, %d entries\n", len(users), total)
	return nil
}
