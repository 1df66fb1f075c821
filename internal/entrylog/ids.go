package entrylog

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/raphaelgruber/memcapsule/internal/models"
)

// IDLayout renders the UTC creation second of an entry, e.g. 20250618T154312Z.
const IDLayout = "20060102T150405Z"

const (
	baseLen   = len(IDLayout)
	seqFormat = "%s-%06d"
)

// NextID returns the id for an entry created at now, given the newest id
// already in the user's log (empty if none).
//
// Ids sort lexicographically in creation order. Entries created within the
// same second, or while the clock reads earlier than the newest id, get the
// newest id's base plus an incrementing "-NNNNNN" suffix.
func NextID(now time.Time, last string) (string, error) {
	candidate := now.UTC().Format(IDLayout)
	if last == "" || candidate > last {
		return candidate, nil
	}

	base, seq, err := splitID(last)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf(seqFormat, base, seq+1), nil
}

// DateOf returns the calendar date (YYYY-MM-DD) an entry id was created on.
func DateOf(id string) (string, error) {
	t, err := TimeOf(id)
	if err != nil {
		return "", err
	}
	return t.Format(models.DateLayout), nil
}

// TimeOf returns the creation second encoded in an entry id.
func TimeOf(id string) (time.Time, error) {
	base, _, err := splitID(id)
	if err != nil {
		return time.Time{}, err
	}
	t, err := time.Parse(IDLayout, base)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: malformed entry id %q", models.ErrValidation, id)
	}
	return t.UTC(), nil
}

// ValidID reports whether id has the entry id shape.
func ValidID(id string) bool {
	_, err := TimeOf(id)
	return err == nil
}

func splitID(id string) (string, int, error) {
	if len(id) < baseLen {
		return "", 0, fmt.Errorf("%w: malformed entry id %q", models.ErrValidation, id)
	}
	base, rest := id[:baseLen], id[baseLen:]
	if rest == "" {
		return base, 0, nil
	}
	suffix, ok := strings.CutPrefix(rest, "-")
	if !ok {
		return "", 0, fmt.Errorf("%w: malformed entry id %q", models.ErrValidation, id)
	}
	seq, err := strconv.Atoi(suffix)
	if err != nil || seq < 0 {
		return "", 0, fmt.Errorf("%w: malformed entry id %q", models.ErrValidation, id)
	}
	return base, seq, nil
}
