package models

import (
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"
)

func TestValidateUserID(t *testing.T) {
	tests := []struct {
		name    string
		userID  string
		wantErr bool
	}{
		{"simple", "u1", false},
		{"email like", "alice@example.com", false},
		{"empty", "", true},
		{"blank", "   ", true},
		{"slash", "a/b", true},
		{"nul", "a\x00b", true},
		{"too long", strings.Repeat("x", MaxUserIDLen+1), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateUserID(tt.userID)
			if tt.wantErr {
				if !errors.Is(err, ErrValidation) {
					t.Errorf("ValidateUserID(%q) = %v, want ErrValidation", tt.userID, err)
				}
				return
			}
			if err != nil {
				t.Errorf("ValidateUserID(%q) unexpected error: %v", tt.userID, err)
			}
		})
	}
}

func TestUserMetaLookups(t *testing.T) {
	m := UserMeta{
		EntryDates: []string{"2025-01-01", "2025-01-02", "2025-01-05"},
		Badges:     []string{"3-day streak"},
	}

	if !m.HasDate("2025-01-02") || m.HasDate("2025-01-03") {
		t.Errorf("HasDate returned wrong membership for %v", m.EntryDates)
	}
	if !m.HasBadge("3-day streak") || m.HasBadge("7-day streak") {
		t.Errorf("HasBadge returned wrong membership for %v", m.Badges)
	}

	c := m.Clone()
	c.EntryDates[0] = "1999-01-01"
	if m.EntryDates[0] != "2025-01-01" {
		t.Errorf("Clone aliases EntryDates")
	}
}

func TestStatsFromMeta(t *testing.T) {
	s := StatsFromMeta(UserMeta{})
	if s.TotalEntries != 0 || s.Streak != 0 || s.Badges == nil {
		t.Errorf("zero meta produced %+v, want zero counts and non-nil badges", s)
	}

	s = StatsFromMeta(UserMeta{EntryDates: []string{"2025-01-01", "2025-01-02"}, Streak: 2})
	if s.TotalEntries != 2 || s.Streak != 2 {
		t.Errorf("got %+v", s)
	}
}

func TestEntryDate(t *testing.T) {
	e := Entry{CreatedAt: time.Date(2025, 6, 18, 23, 59, 0, 0, time.UTC)}
	if got := e.Date(); got != "2025-06-18" {
		t.Errorf("Date() = %q", got)
	}
}

func TestErrorCodes(t *testing.T) {
	for _, c := range errorCodes {
		wrapped := fmt.Errorf("ctx: %w", c.err)
		if got := ErrorCode(wrapped); got != c.code {
			t.Errorf("ErrorCode(%v) = %q, want %q", wrapped, got, c.code)
		}
		if back := ErrorForCode(c.code); back != c.err {
			t.Errorf("ErrorForCode(%q) = %v, want %v", c.code, back, c.err)
		}
	}
	if got := ErrorCode(errors.New("boom")); got != "internal" {
		t.Errorf("ErrorCode(unknown) = %q, want internal", got)
	}
	if ErrorForCode("internal") != nil {
		t.Errorf("ErrorForCode(internal) should not map to a sentinel")
	}
}
