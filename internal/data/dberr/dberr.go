package dberr

import (
	"errors"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
)

const pgUniqueViolation = "23505"

// IsUniqueViolation reports whether err is a unique-constraint failure. An empty
// constraint matches any.
func IsUniqueViolation(err error, constraint string) bool {
	if err == nil {
		return false
	}
	constraint = strings.TrimSpace(constraint)
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		if pgErr.Code != pgUniqueViolation {
			return false
		}
		return constraint == "" || strings.EqualFold(pgErr.ConstraintName, constraint)
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}

	// Fallback: string match (covers wrapped errors that lose type info, and sqlite).
	msg := strings.ToLower(err.Error())
	if strings.Contains(msg, "sqlstate 23505") || strings.Contains(msg, "unique constraint failed") {
		if constraint == "" {
			return true
		}
		return strings.Contains(msg, strings.ToLower(constraint))
	}
	return false
}

func IsNotFound(err error) bool {
	return errors.Is(err, gorm.ErrRecordNotFound)
}
