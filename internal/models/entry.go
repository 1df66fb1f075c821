// Package models defines data structures for the journaling capsule.
package models

import (
	"slices"
	"time"
)

// DateLayout is the ISO calendar date format used for streak tracking.
const DateLayout = "2006-01-02"

// Entry is one immutable journal entry.
type Entry struct {
	ID        string    `json:"entry_id" yaml:"entry_id"`
	UserID    string    `json:"user_id" yaml:"user_id"`
	Content   string    `json:"content" yaml:"-"`
	CreatedAt time.Time `json:"created_at" yaml:"created_at"`
}

// Date returns the calendar date of the entry in DateLayout.
func (e Entry) Date() string {
	return e.CreatedAt.UTC().Format(DateLayout)
}

// UserMeta is the streak and badge state of one user.
// EntryDates is kept sorted and free of duplicates.
type UserMeta struct {
	EntryDates []string `json:"entries"`
	Streak     int      `json:"streak"`
	Badges     []string `json:"badges"`
}

// HasDate reports whether date is already tracked.
func (m UserMeta) HasDate(date string) bool {
	_, found := slices.BinarySearch(m.EntryDates, date)
	return found
}

// HasBadge reports whether the badge has been earned.
func (m UserMeta) HasBadge(name string) bool {
	return slices.Contains(m.Badges, name)
}

// Clone returns a deep copy so callers can mutate without aliasing.
func (m UserMeta) Clone() UserMeta {
	return UserMeta{
		EntryDates: slices.Clone(m.EntryDates),
		Streak:     m.Streak,
		Badges:     slices.Clone(m.Badges),
	}
}

// Stats is the public summary of a user's journaling.
type Stats struct {
	TotalEntries int      `json:"total_entries"`
	Streak       int      `json:"streak"`
	Badges       []string `json:"badges"`
}

// StatsFromMeta builds Stats. TotalEntries counts distinct entry dates.
func StatsFromMeta(m UserMeta) Stats {
	badges := m.Badges
	if badges == nil {
		badges = []string{}
	}
	return Stats{
		TotalEntries: len(m.EntryDates),
		Streak:       m.Streak,
		Badges:       slices.Clone(badges),
	}
}

// Flashback is one similarity search hit hydrated with its content.
// Score is the raw distance: lower is closer.
type Flashback struct {
	EntryID string  `json:"entry_id"`
	Content string  `json:"content"`
	Score   float64 `json:"score"`
}

// SaveResult is returned by a successful entry save.
// BadgeAwarded is empty when no badge was earned by this save.
type SaveResult struct {
	EntryID      string `json:"entry_id"`
	Content      string `json:"text"`
	Streak       int    `json:"streak"`
	BadgeAwarded string `json:"badge_awarded,omitempty"`
}
