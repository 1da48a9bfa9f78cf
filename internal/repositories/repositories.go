package repositories

import (
	"database/sql"
	"fmt"
)

// querier is satisfied by both *sql.DB and *sql.Tx.
type querier interface {
	QueryRow(query string, args ...any) *sql.Row
}

// NextSequence increments the "<table>_sequence" counter and returns its new value.
//
// Pass a *sql.Tx to allocate the number atomically with the row that uses it.
// Sequence numbers give runs a short handle for the history commands (e.g., run #42).
func NextSequence(q querier, table string) (int, error) {
	query := fmt.Sprintf("UPDATE %s_sequence SET value = value + 1 WHERE id = 1 RETURNING value", table)

	var sequence int
	if err := q.QueryRow(query).Scan(&sequence); err != nil {
		return 0, fmt.Errorf("failed to advance %s sequence: %w", table, err)
	}
	return sequence, nil
}
