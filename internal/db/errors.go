package db

import (
	"errors"
	"fmt"
	"strings"

	"github.com/surrealdb/surrealdb.go"

	"github.com/raphaelgruber/memcapsule/internal/models"
)

// ErrTransactionConflict indicates a SurrealDB transaction conflict.
// It wraps models.ErrConflict so callers retry with fresh state.
var ErrTransactionConflict = fmt.Errorf("transaction conflict: %w", models.ErrConflict)

// positionConflict is thrown by the vector append transaction.
const positionConflict = "position conflict"

// wrapQueryError inspects a SurrealDB error and wraps it with the matching
// sentinel if it is a known query error. Other errors are returned as is.
func wrapQueryError(err error) error {
	if err == nil {
		return nil
	}

	var queryErr *surrealdb.QueryError
	if errors.As(err, &queryErr) {
		msg := queryErr.Message
		switch {
		case strings.Contains(msg, "already exists"),
			strings.Contains(msg, "already contains"),
			strings.Contains(msg, positionConflict):
			return fmt.Errorf("%w: %s", models.ErrConflict, msg)
		case strings.Contains(msg, "Transaction conflict"):
			return fmt.Errorf("%w: %s", ErrTransactionConflict, msg)
		}
	}

	return err
}
