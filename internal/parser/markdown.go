// Package parser reads and writes journal entries as Markdown files with
// YAML frontmatter.
package parser

import (
	"bytes"
	"fmt"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/raphaelgruber/memcapsule/internal/models"
)

const delimiter = "---"

// Frontmatter is the metadata block written above an exported entry.
type Frontmatter struct {
	EntryID   string    `yaml:"entry_id,omitempty"`
	UserID    string    `yaml:"user_id,omitempty"`
	Date      string    `yaml:"date,omitempty"`
	CreatedAt time.Time `yaml:"created_at,omitempty"`
}

// EntryDoc is a parsed entry file.
type EntryDoc struct {
	Frontmatter Frontmatter
	// Extra holds frontmatter keys not covered by Frontmatter.
	Extra map[string]any
	Body  string
}

// RenderEntry formats e as Markdown with a YAML frontmatter block.
func RenderEntry(e models.Entry) ([]byte, error) {
	fm := Frontmatter{
		EntryID:   e.ID,
		UserID:    e.UserID,
		Date:      e.Date(),
		CreatedAt: e.CreatedAt.UTC(),
	}
	meta, err := yaml.Marshal(fm)
	if err != nil {
		return nil, fmt.Errorf("marshal frontmatter: %w", err)
	}

	var buf bytes.Buffer
	buf.WriteString(delimiter + "\n")
	buf.Write(meta)
	buf.WriteString(delimiter + "\n\n")
	buf.WriteString(strings.TrimRight(e.Content, "\n"))
	buf.WriteString("\n")
	return buf.Bytes(), nil
}

// ParseEntry splits content into frontmatter and body. Content without a
// frontmatter block is all body. A malformed block is an error.
func ParseEntry(content string) (EntryDoc, error) {
	content = strings.ReplaceAll(content, "\r\n", "\n")
	doc := EntryDoc{Extra: map[string]any{}}

	if !strings.HasPrefix(content, delimiter+"\n") {
		doc.Body = strings.TrimSpace(content)
		return doc, nil
	}

	rest := content[len(delimiter)+1:]
	end := strings.Index(rest, "\n"+delimiter)
	var block string
	switch {
	case strings.HasPrefix(rest, delimiter):
		rest = rest[len(delimiter):]
	case end >= 0:
		block = rest[:end]
		rest = rest[end+len(delimiter)+1:]
	default:
		return EntryDoc{}, fmt.Errorf("unterminated frontmatter")
	}

	if err := yaml.Unmarshal([]byte(block), &doc.Frontmatter); err != nil {
		return EntryDoc{}, fmt.Errorf("parse frontmatter: %w", err)
	}
	if err := yaml.Unmarshal([]byte(block), &doc.Extra); err != nil {
		return EntryDoc{}, fmt.Errorf("parse frontmatter: %w", err)
	}
	for _, known := range []string{"entry_id", "user_id", "date", "created_at"} {
		delete(doc.Extra, known)
	}

	doc.Body = strings.TrimSpace(rest)
	return doc, nil
}

// ParseAnswers reads a YAML list of answers, one per journaling question.
func ParseAnswers(content []byte) ([]string, error) {
	var answers []string
	if err := yaml.Unmarshal(content, &answers); err != nil {
		return nil, fmt.Errorf("parse answers: %w", err)
	}
	return answers, nil
}

// FileName is the export file name for an entry.
func FileName(e models.Entry) string {
	return e.ID + ".md"
}
