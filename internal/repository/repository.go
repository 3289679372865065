// internal/repository/repository.go
package repository

import (
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// Lookups return (nil, nil) when a row does not exist. The errors below are
// reserved for writes that the schema refuses.
var (
	// ErrDuplicate is returned when a write would break a uniqueness rule:
	// a second open membership of the same kind, a second registration for
	// the same event, a username that is already taken.
	ErrDuplicate = errors.New("duplicate record")
	// ErrClosed is returned when a write targets a ledger row that has
	// already been closed.
	ErrClosed = errors.New("record is closed")
	// ErrTicketTaken is returned when a generated ticket number is already
	// in use. Nothing was stored and the caller may retry with a new one.
	ErrTicketTaken = errors.New("ticket number taken")
)

const (
	uniqueViolation = "23505"
	// Raised for ids that are not valid UUIDs.
	invalidTextRepresentation = "22P02"
)

// isNoRows reports whether a lookup found nothing. An id Postgres cannot
// parse as a UUID cannot name a row either.
func isNoRows(err error) bool {
	if errors.Is(err, pgx.ErrNoRows) {
		return true
	}
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == invalidTextRepresentation
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}

// mapWriteErr turns constraint failures into repository errors.
func mapWriteErr(err error) error {
	if isUniqueViolation(err) {
		return ErrDuplicate
	}
	return err
}
