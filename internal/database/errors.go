package database

import (
	"database/sql"
	"errors"
	"fmt"

	"salonbook/internal/domain"

	"github.com/mattn/go-sqlite3"
)

// classify wraps a driver error, marking lock contention and I/O failures
// as transient and missing rows as not found.
func classify(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%s: %w", op, domain.ErrNotFound)
	}
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		switch sqliteErr.Code {
		case sqlite3.ErrBusy, sqlite3.ErrLocked, sqlite3.ErrIoErr, sqlite3.ErrCantOpen:
			return fmt.Errorf("%s: %w: %w", op, domain.ErrTransientStorage, err)
		}
	}
	return fmt.Errorf("%s: %w", op, err)
}
