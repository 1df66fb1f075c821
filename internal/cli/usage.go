package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/raphaelgruber/memcapsule/internal/client"
	"github.com/raphaelgruber/memcapsule/internal/metrics"
)

var usageCmd = &cobra.Command{
	Use:   "usage",
	Short: "Show server usage statistics",
	Long: `Show runtime statistics of a running capsule-server: call counts,
errors, fallbacks and timings per operation since the server started.

The server is taken from --server or CAPSULE_SERVER_URL.

Examples:
  capsule usage
  capsule usage --server http://journal.local:8000`,
	Args: cobra.NoArgs,
	RunE: runUsage,
}

func runUsage(cmd *cobra.Command, args []string) error {
	snap, err := client.New(serverURL).Usage(cmd.Context())
	if err != nil {
		return fmt.Errorf("get server stats: %w", err)
	}
	printServerStats(cmd.OutOrStdout(), snap)
	return nil
}

// printServerStats displays server runtime statistics.
func printServerStats(w io.Writer, snap metrics.Snapshot) {
	fmt.Fprintf(w, "Server Statistics (in-memory, since restart)\n")
	fmt.Fprintf(w, "═══════════════════════════════════════════════\n")
	fmt.Fprintf(w, "Uptime: %.1f seconds\n", snap.UptimeSeconds)

	if len(snap.Operations) == 0 {
		fmt.Fprintf(w, "\nNo operations recorded yet.\n")
		return
	}

	for _, name := range snap.Names() {
		fmt.Fprintf(w, "\n%s:\n", name)
		printOpStats(w, snap.Operations[name])
	}
}

// printOpStats displays timing statistics for an operation.
func printOpStats(w io.Writer, op *metrics.OperationSnapshot) {
	fmt.Fprintf(w, "  Calls: %d, Errors: %d, Total: %dms\n", op.Count, op.Errors, op.TotalTimeMs)
	if op.Count > 0 {
		fmt.Fprintf(w, "  Time: avg %.1fms, min %dms, max %dms\n", op.AvgTimeMs, op.MinTimeMs, op.MaxTimeMs)
	}
	if op.Fallbacks > 0 {
		fmt.Fprintf(w, "  Fallbacks: %d\n", op.Fallbacks)
	}
}
