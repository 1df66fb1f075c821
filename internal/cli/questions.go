package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/raphaelgruber/memcapsule/internal/service"
)

var questionsYAML bool

var questionsCmd = &cobra.Command{
	Use:   "questions",
	Short: "List the guided journaling questions",
	Long: `List the ten guided journaling questions used for AI-composed entries.

With --yaml, prints an answers template for 'capsule add --answers-file'.

Examples:
  capsule questions
  capsule questions --yaml > answers.yaml`,
	Args: cobra.NoArgs,
	RunE: runQuestions,
}

func init() {
	questionsCmd.Flags().BoolVar(&questionsYAML, "yaml", false, "print an answers template")
}

func runQuestions(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()
	if questionsYAML {
		return writeAnswersTemplate(out, service.Questions)
	}
	for i, q := range service.Questions {
		fmt.Fprintf(out, "%2d. %s\n", i+1, q)
	}
	return nil
}

// writeAnswersTemplate writes a YAML list of empty answers, each preceded by
// its question as a comment.
func writeAnswersTemplate(w io.Writer, questions []string) error {
	seq := &yaml.Node{Kind: yaml.SequenceNode}
	for i, q := range questions {
		seq.Content = append(seq.Content, &yaml.Node{
			Kind:        yaml.ScalarNode,
			Tag:         "!!str",
			Value:       "",
			Style:       yaml.DoubleQuotedStyle,
			HeadComment: fmt.Sprintf("%d. %s", i+1, q),
		})
	}

	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(&yaml.Node{Kind: yaml.DocumentNode, Content: []*yaml.Node{seq}}); err != nil {
		return fmt.Errorf("encode template: %w", err)
	}
	return enc.Close()
}
