package db

import (
	"errors"
	"strings"

	"gorm.io/gorm"

	pkgerrors "github.com/rtwroastery/roastery-backend/pkg/errors"
)

// IsUniqueViolation reports a unique index conflict. Postgres errors are
// matched by SQLSTATE and constraint name. sqlite names the columns rather
// than the index, so any sqlite unique failure matches.
func IsUniqueViolation(err error, constraintName string) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	diag := pkgerrors.Diagnose(err)
	if diag.PGCode != "" {
		return diag.UniqueViolation(constraintName)
	}
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}

// IsNotFound reports whether err is gorm's missing-row sentinel.
func IsNotFound(err error) bool {
	return errors.Is(err, gorm.ErrRecordNotFound)
}
