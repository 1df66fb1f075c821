package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/raphaelgruber/memcapsule/internal/parser"
)

var exportAll bool

var exportCmd = &cobra.Command{
	Use:   "export <path>",
	Short: "Export the journal to Markdown files",
	Long: `Export journal entries to Markdown files for backup or migration.

Creates one directory per user with one file per entry, named by entry id.
Entry metadata is kept in YAML frontmatter. Entries never change, so
re-exporting to the same path only adds new files.

Examples:
  capsule export ./backup
  capsule export ./backup -u alice
  capsule export ./backup --all`,
	Args: cobra.ExactArgs(1),
	RunE: runExport,
}

func init() {
	exportCmd.Flags().BoolVar(&exportAll, "all", false, "export every user")
}

func runExport(cmd *cobra.Command, args []string) error {
	exportPath := args[0]
	ctx := cmd.Context()
	out := cmd.OutOrStdout()

	a, err := requireLocal()
	if err != nil {
		return err
	}

	users := []string{userID}
	if exportAll {
		users, err = a.Users(ctx)
		if err != nil {
			return fmt.Errorf("list users: %w", err)
		}
	}

	exported, skipped := 0, 0
	for _, user := range users {
		entries, err := a.Store.Entries(ctx, user)
		if err != nil {
			return fmt.Errorf("list entries for %s: %w", user, err)
		}
		if len(entries) == 0 {
			continue
		}

		userDir := filepath.Join(exportPath, user)
		if err := os.MkdirAll(userDir, 0o755); err != nil {
			return fmt.Errorf("create export directory: %w", err)
		}

		for _, entry := range entries {
			filename := filepath.Join(userDir, parser.FileName(entry))
			if _, err := os.Stat(filename); err == nil {
				skipped++
				continue
			}

			content, err := parser.RenderEntry(entry)
			if err != nil {
				return fmt.Errorf("render %s: %w", entry.ID, err)
			}
			if err := os.WriteFile(filename, content, 0o644); err != nil {
				fmt.Fprintf(cmd.ErrOrStderr(), "Warning: failed to write %s: %v\n", filename, err)
				continue
			}
			exported++

			if verbose {
				fmt.Fprintf(out, "  Exported: %s\n", filename)
			}
		}
	}

	if exported == 0 && skipped == 0 {
		fmt.Fprintln(out, "No entries to export.")
		return nil
	}
	fmt.Fprintf(out, "Exported %d entries to %s", exported, exportPath)
	if skipped > 0 {
		fmt.Fprintf(out, " (%d already present)", skipped)
	}
	fmt.Fprintln(out)
	return nil
}
