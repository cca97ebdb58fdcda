package errors

import (
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
)

// pgUniqueViolation is the SQLSTATE for a unique index conflict.
const pgUniqueViolation = "23505"

// Diagnosis is the log-only view of an error: its chain plus any Postgres
// fields the driver attached. It never reaches API callers.
type Diagnosis struct {
	Message    string
	Code       Code
	Chain      []string
	PGCode     string
	Constraint string
	Table      string
	Column     string
	Detail     string
}

// Diagnose walks err and pulls out driver details from either pgx or lib/pq.
func Diagnose(err error) Diagnosis {
	if err == nil {
		return Diagnosis{}
	}
	d := Diagnosis{Message: err.Error()}
	if typed := As(err); typed != nil {
		d.Code = typed.Code()
	}
	for e := err; e != nil; e = errors.Unwrap(e) {
		d.Chain = append(d.Chain, fmt.Sprintf("%T: %v", e, e))
	}

	var pgxErr *pgconn.PgError
	var pqErr *pq.Error
	switch {
	case errors.As(err, &pgxErr):
		d.PGCode, d.Constraint, d.Table, d.Column, d.Detail = pgxErr.Code, pgxErr.ConstraintName, pgxErr.TableName, pgxErr.ColumnName, pgxErr.Detail
	case errors.As(err, &pqErr):
		d.PGCode, d.Constraint, d.Table, d.Column, d.Detail = string(pqErr.Code), pqErr.Constraint, pqErr.Table, pqErr.Column, pqErr.Detail
	}
	return d
}

// UniqueViolation reports a Postgres unique conflict, optionally on a named
// constraint.
func (d Diagnosis) UniqueViolation(constraint string) bool {
	if d.PGCode != pgUniqueViolation {
		return false
	}
	return constraint == "" || d.Constraint == constraint
}

// Fields flattens the diagnosis for structured logging. Empty driver fields
// are left out.
func (d Diagnosis) Fields() map[string]any {
	fields := map[string]any{
		"error":       d.Message,
		"error_code":  d.Code,
		"error_chain": d.Chain,
	}
	for key, value := range map[string]string{
		"pg_code":       d.PGCode,
		"pg_constraint": d.Constraint,
		"pg_table":      d.Table,
		"pg_column":     d.Column,
		"pg_detail":     d.Detail,
	} {
		if value != "" {
			fields[key] = value
		}
	}
	return fields
}
