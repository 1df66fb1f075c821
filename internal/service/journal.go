// Package service turns journaling requests into finished entry text and
// hands it to the capsule store.
package service

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/raphaelgruber/memcapsule/internal/capsule"
	"github.com/raphaelgruber/memcapsule/internal/metrics"
	"github.com/raphaelgruber/memcapsule/internal/models"
)

// Generator produces text from a prompt. *llm.Model implements it.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// Saver persists finished entries. *capsule.Store implements it.
type Saver interface {
	SaveEntry(ctx context.Context, userID, content string) (models.SaveResult, error)
}

// Draft is the assembled form of a request, ready to be saved.
// It is either a ManualEntry or an AssembledEntry.
type Draft interface {
	Body() string
	isDraft()
}

// ManualEntry is text written directly by the user.
type ManualEntry struct {
	Content string
}

func (m ManualEntry) Body() string { return m.Content }
func (ManualEntry) isDraft()       {}

// AssembledEntry is built from question answers. Text is the generated
// entry, or Raw itself when generation was unavailable.
type AssembledEntry struct {
	Raw       string
	Text      string
	Generated bool
}

func (a AssembledEntry) Body() string { return a.Text }
func (AssembledEntry) isDraft()       {}

// CreateResult is returned by Create. Warning is set when the entry was
// stored but its streak or index update failed.
type CreateResult struct {
	models.SaveResult
	Generated bool   `json:"generated,omitempty"`
	Warning   string `json:"warning,omitempty"`
}

// DefaultGenerateTimeout bounds a single generation call.
const DefaultGenerateTimeout = 60 * time.Second

// JournalService validates requests, assembles entry text and saves it.
type JournalService struct {
	saver     Saver
	generator Generator
	logger    *slog.Logger
	metrics   *metrics.Collector
	timeout   time.Duration
}

// Option configures a JournalService.
type Option func(*JournalService)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *JournalService) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithMetrics records generation timings and fallbacks in c.
func WithMetrics(c *metrics.Collector) Option {
	return func(s *JournalService) { s.metrics = c }
}

// WithGenerateTimeout bounds each generation call.
func WithGenerateTimeout(d time.Duration) Option {
	return func(s *JournalService) {
		if d > 0 {
			s.timeout = d
		}
	}
}

// NewJournalService creates a JournalService. generator may be nil, in which
// case AI-mode entries are stored as their raw question/answer block.
func NewJournalService(saver Saver, generator Generator, opts ...Option) *JournalService {
	s := &JournalService{
		saver:     saver,
		generator: generator,
		logger:    slog.Default(),
		timeout:   DefaultGenerateTimeout,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Assemble validates req and produces the text to store.
// In AI mode any generation failure or empty output falls back to the raw
// question/answer block, so Assemble only fails on invalid input.
func (s *JournalService) Assemble(ctx context.Context, req EntryRequest) (Draft, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	if req.Mode == ModeManual {
		return ManualEntry{Content: strings.TrimSpace(req.Content)}, nil
	}

	raw := RawBlock(req.Answers)
	entry := AssembledEntry{Raw: raw, Text: raw}
	if s.generator == nil {
		s.metrics.RecordFallback(metrics.OpGenerate)
		return entry, nil
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	start := time.Now()
	text, err := s.generator.Generate(ctx, Prompt(raw))
	s.metrics.RecordTiming(metrics.OpGenerate, time.Since(start), err)
	text = strings.TrimSpace(text)
	if err != nil || text == "" {
		s.metrics.RecordFallback(metrics.OpGenerate)
		s.logger.Warn("generation unavailable, storing raw answers", "user_id", req.UserID, "error", err)
		return entry, nil
	}

	entry.Text = text
	entry.Generated = true
	return entry, nil
}

// Create assembles and saves an entry. A save that stored the entry but
// failed to update derived state is reported through Warning, not an error.
func (s *JournalService) Create(ctx context.Context, req EntryRequest) (CreateResult, error) {
	draft, err := s.Assemble(ctx, req)
	if err != nil {
		return CreateResult{}, err
	}

	res, err := s.saver.SaveEntry(ctx, req.UserID, draft.Body())
	out := CreateResult{SaveResult: res}
	if a, ok := draft.(AssembledEntry); ok {
		out.Generated = a.Generated
	}

	if errors.Is(err, capsule.ErrPartialSave) {
		out.Warning = err.Error()
		return out, nil
	}
	if err != nil {
		return CreateResult{}, err
	}
	return out, nil
}
