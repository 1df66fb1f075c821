// Package streak derives writing streaks and milestone badges from entry dates.
package streak

import (
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/raphaelgruber/memcapsule/internal/models"
)

// Milestone pairs a streak length with the badge it awards.
type Milestone struct {
	Days  int
	Badge string
}

// Milestones is the fixed badge table, ordered by length.
var Milestones = []Milestone{
	{Days: 3, Badge: "3-day streak"},
	{Days: 7, Badge: "7-day streak"},
	{Days: 14, Badge: "14-day streak"},
	{Days: 30, Badge: "30-day streak"},
}

// BadgeFor returns the badge awarded at exactly streak days, if any.
func BadgeFor(streak int) (string, bool) {
	for _, m := range Milestones {
		if m.Days == streak {
			return m.Badge, true
		}
	}
	return "", false
}

// Store persists one metadata record per user.
type Store interface {
	// LoadMeta reports found=false for users without a record.
	LoadMeta(ctx context.Context, userID string) (meta models.UserMeta, found bool, err error)
	SaveMeta(ctx context.Context, userID string, meta models.UserMeta) error
}

// Tracker records entry dates and maintains streak and badge state.
// Callers serialize Record calls for the same user.
type Tracker struct {
	store Store
}

// New creates a Tracker over store.
func New(store Store) *Tracker {
	return &Tracker{store: store}
}

// Load returns the user's metadata, or the zero value for unknown users.
func (t *Tracker) Load(ctx context.Context, userID string) (models.UserMeta, error) {
	meta, found, err := t.store.LoadMeta(ctx, userID)
	if err != nil {
		return models.UserMeta{}, fmt.Errorf("load meta: %w", err)
	}
	if !found {
		return models.UserMeta{EntryDates: []string{}, Badges: []string{}}, nil
	}
	return meta, nil
}

// Record adds date (YYYY-MM-DD) to the user's entry dates and recomputes the
// streak ending at that date. It returns the new streak and the badge newly
// awarded by this call, or "" if none.
//
// The streak is relative to the recorded date, not to today: backfilling an
// old date reports the run ending at that old date.
func (t *Tracker) Record(ctx context.Context, userID, date string) (int, string, error) {
	if _, err := time.Parse(models.DateLayout, date); err != nil {
		return 0, "", fmt.Errorf("%w: entry date %q", models.ErrValidation, date)
	}

	meta, err := t.Load(ctx, userID)
	if err != nil {
		return 0, "", err
	}

	meta, badge := Apply(meta, date)
	if err := t.store.SaveMeta(ctx, userID, meta); err != nil {
		return 0, "", fmt.Errorf("save meta: %w", err)
	}
	return meta.Streak, badge, nil
}

// Apply is the pure form of Record: it returns the updated metadata and the
// newly awarded badge. meta is not modified. date must be a valid DateLayout
// date.
func Apply(meta models.UserMeta, date string) (models.UserMeta, string) {
	meta = meta.Clone()
	if pos, found := slices.BinarySearch(meta.EntryDates, date); !found {
		meta.EntryDates = slices.Insert(meta.EntryDates, pos, date)
	}

	meta.Streak = Compute(meta.EntryDates, date)

	badge, ok := BadgeFor(meta.Streak)
	if !ok || meta.HasBadge(badge) {
		return meta, ""
	}
	meta.Badges = append(meta.Badges, badge)
	return meta, badge
}

// Replay folds dates through Apply in order, starting from base. Badges in
// base are kept; the result is the state a fresh tracker would reach.
func Replay(base models.UserMeta, dates []string) models.UserMeta {
	meta := models.UserMeta{EntryDates: []string{}, Badges: slices.Clone(base.Badges)}
	if meta.Badges == nil {
		meta.Badges = []string{}
	}
	for _, d := range dates {
		meta, _ = Apply(meta, d)
	}
	return meta
}

// Compute walks backward day by day from date while the day is present in
// sorted dates and returns the number of consecutive days found.
func Compute(dates []string, date string) int {
	d, err := time.Parse(models.DateLayout, date)
	if err != nil {
		return 0
	}

	streak := 0
	for {
		if _, found := slices.BinarySearch(dates, d.Format(models.DateLayout)); !found {
			return streak
		}
		streak++
		d = d.AddDate(0, 0, -1)
	}
}

// Rebuild replaces the user's metadata with the state derived from dates,
// keeping every badge already earned. dates must be in the order the entries
// were written.
func (t *Tracker) Rebuild(ctx context.Context, userID string, dates []string) (models.UserMeta, error) {
	for _, d := range dates {
		if _, err := time.Parse(models.DateLayout, d); err != nil {
			return models.UserMeta{}, fmt.Errorf("%w: entry date %q", models.ErrValidation, d)
		}
	}

	old, err := t.Load(ctx, userID)
	if err != nil {
		return models.UserMeta{}, err
	}

	meta := Replay(old, dates)
	if err := t.store.SaveMeta(ctx, userID, meta); err != nil {
		return models.UserMeta{}, fmt.Errorf("save meta: %w", err)
	}
	return meta, nil
}
