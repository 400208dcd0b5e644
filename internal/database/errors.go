package database

import (
	"database/sql"
	"errors"
	"fmt"

	"salon/internal/domain"

	"github.com/mattn/go-sqlite3"
)

// mapError translates driver errors into the domain taxonomy. A unique
// violation becomes onUnique; anything unexpected is reported as
// ErrPersistenceUnavailable with the cause kept in the chain.
func mapError(err error, op string, onUnique error) error {
	if err == nil {
		return nil
	}
	if domain.IsKnown(err) {
		return err
	}
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%s: %w", op, domain.ErrNotFound)
	}

	var se sqlite3.Error
	if errors.As(err, &se) {
		switch {
		case se.ExtendedCode == sqlite3.ErrConstraintUnique || se.ExtendedCode == sqlite3.ErrConstraintPrimaryKey:
			if onUnique != nil {
				return fmt.Errorf("%s: %w", op, onUnique)
			}
		case se.ExtendedCode == sqlite3.ErrConstraintCheck:
			return fmt.Errorf("%s: %w: %v", op, domain.ErrInvalidInput, err)
		case se.ExtendedCode == sqlite3.ErrConstraintForeignKey:
			return fmt.Errorf("%s: %w: %v", op, domain.ErrNotFound, err)
		}
	}

	return fmt.Errorf("failed to %s: %w: %w", op, domain.ErrPersistenceUnavailable, err)
}
