package repository

import (
	"chat-gateway/internal/contract"

	"github.com/dgraph-io/badger/v4"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/puddle/v2"
	"github.com/pkg/errors"
)

// ErrDuplicate is returned when a unique key such as a username is already taken.
var ErrDuplicate = errors.New("already exists")

// wrap annotates a driver error with op. Failures that leave the store unusable
// for the caller's session are reported as contract.ErrStoreUnavailable.
func wrap(err error, op string) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, pgx.ErrNoRows) || errors.Is(err, badger.ErrKeyNotFound) {
		return errors.WithMessage(contract.ErrNotFound, op)
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return errors.WithMessage(ErrDuplicate, op)
	}
	if unusable(err) {
		return errors.WithMessagef(contract.ErrStoreUnavailable, "%s: %v", op, err)
	}
	return errors.Wrap(err, op)
}

func unusable(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		if len(pgErr.Code) < 2 {
			return false
		}
		switch pgErr.Code[:2] {
		// connection exception, insufficient resources, operator intervention
		case "08", "53", "57":
			return true
		}
		return false
	}
	var connectErr *pgconn.ConnectError
	if errors.As(err, &connectErr) {
		return true
	}
	return errors.Is(err, puddle.ErrClosedPool) || errors.Is(err, badger.ErrDBClosed)
}
