package cli

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/raphaelgruber/memcapsule/internal/parser"
	"github.com/raphaelgruber/memcapsule/internal/service"
)

var (
	addFile        string
	addAnswersFile string
)

var addCmd = &cobra.Command{
	Use:   "add [text]",
	Short: "Write a journal entry",
	Long: `Write a journal entry, either as free text or from answers to the guided questions.

A Markdown file may carry YAML frontmatter; only the body is stored.
An answers file is a YAML list with one answer per question, in order
(see 'capsule questions --yaml').

Examples:
  capsule add "Long walk by the river, felt calm afterwards."
  capsule add --file today.md
  cat today.md | capsule add --file -
  capsule add --answers-file answers.yaml`,
	Args: cobra.MaximumNArgs(1),
	RunE: runAdd,
}

func init() {
	addCmd.Flags().StringVarP(&addFile, "file", "f", "", "read the entry from a Markdown file ('-' for stdin)")
	addCmd.Flags().StringVarP(&addAnswersFile, "answers-file", "a", "", "YAML list of answers to the guided questions")
	addCmd.MarkFlagsMutuallyExclusive("file", "answers-file")
}

func runAdd(cmd *cobra.Command, args []string) error {
	req, err := buildEntryRequest(cmd.InOrStdin(), args)
	if err != nil {
		return err
	}

	res, err := journal.Create(cmd.Context(), req)
	if err != nil {
		return fmt.Errorf("save entry: %w", err)
	}

	out := cmd.OutOrStdout()
	theme := themeFor(out)
	fmt.Fprintf(out, "%s %s\n", theme.success("Saved"), res.EntryID)
	fmt.Fprintf(out, "Streak: %d %s\n", res.Streak, dayWord(res.Streak))
	if res.BadgeAwarded != "" {
		fmt.Fprintf(out, "%s %s\n", theme.badge("New badge:"), res.BadgeAwarded)
	}
	if res.Warning != "" {
		fmt.Fprintf(out, "%s %s\n", theme.warning("Warning:"), res.Warning)
		fmt.Fprintln(out, theme.hint("The entry is stored. Run 'capsule rebuild' to repair streak and search data."))
	}
	if verbose && req.Mode == service.ModeAI {
		fmt.Fprintf(out, "\n%s\n", res.Content)
	}
	return nil
}

func buildEntryRequest(stdin io.Reader, args []string) (service.EntryRequest, error) {
	req := service.EntryRequest{Mode: service.ModeManual, UserID: userID}

	switch {
	case addAnswersFile != "":
		data, err := readInput(stdin, addAnswersFile)
		if err != nil {
			return req, err
		}
		answers, err := parser.ParseAnswers(data)
		if err != nil {
			return req, err
		}
		req.Mode = service.ModeAI
		req.Answers = answers

	case addFile != "":
		data, err := readInput(stdin, addFile)
		if err != nil {
			return req, err
		}
		doc, err := parser.ParseEntry(string(data))
		if err != nil {
			return req, fmt.Errorf("%s: %w", addFile, err)
		}
		req.Content = doc.Body

	case len(args) == 1:
		req.Content = args[0]

	default:
		return req, errors.New("provide the entry text, --file or --answers-file")
	}
	return req, nil
}

func readInput(stdin io.Reader, path string) ([]byte, error) {
	if path == "-" {
		return io.ReadAll(stdin)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return data, nil
}

func dayWord(n int) string {
	if n == 1 {
		return "day"
	}
	return "days"
}
