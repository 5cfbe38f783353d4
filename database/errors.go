/*
 * Copyright 2025 tomoncle.
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package database

import (
	"database/sql"
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/go-sql-driver/mysql"
	"github.com/lib/pq"
)

// ConfigurationError reports a misuse of the data layer that no retry can
// fix: a missing unit of work, an unordered page request, an unknown field.
type ConfigurationError struct {
	Reason string
}

func (e *ConfigurationError) Error() string {
	return "database: " + e.Reason
}

var (
	ErrNoUnitOfWork     = &ConfigurationError{Reason: "no active unit of work in context"}
	ErrNoDatabase       = &ConfigurationError{Reason: "database not initialized"}
	ErrUnorderedPage    = &ConfigurationError{Reason: "paginated query requires an explicit ordering"}
	ErrUnknownSortField = &ConfigurationError{Reason: "unknown sort field"}
	ErrUnknownColumn    = &ConfigurationError{Reason: "unknown or read-only column"}
	ErrNoAssignments    = &ConfigurationError{Reason: "bulk update requires at least one assignment"}
)

var (
	// ErrNotFound is returned when a single-result lookup matches no row.
	ErrNotFound = errors.New("database: record not found")
	// ErrNonUniqueResult is returned when a single-result lookup matches more
	// than one row.
	ErrNonUniqueResult = errors.New("database: query did not return a unique result")
)

type SQLError int

const (
	UnknownErr SQLError = iota
	NoRowsErr
	NoIndexErr
	NoColumnErr
	ExistIndexErr
	ExistColumnErr
	NoTableErr
	ExistTableErr
	DuplicateKeyErr
	NotNullViolationErr
	ForeignKeyViolationErr
	CheckConstraintViolationErr
	DataTruncatedErr
	InvalidTypeCastErr
)

var sqlErrorNames = [...]string{
	UnknownErr:                  "unknown",
	NoRowsErr:                   "no rows",
	NoIndexErr:                  "no such index",
	NoColumnErr:                 "no such column",
	ExistIndexErr:               "index exists",
	ExistColumnErr:              "column exists",
	NoTableErr:                  "no such table",
	ExistTableErr:               "table exists",
	DuplicateKeyErr:             "duplicate key",
	NotNullViolationErr:         "not null violation",
	ForeignKeyViolationErr:      "foreign key violation",
	CheckConstraintViolationErr: "check constraint violation",
	DataTruncatedErr:            "data truncated",
	InvalidTypeCastErr:          "invalid type cast",
}

func (e SQLError) String() string {
	if e < 0 || int(e) >= len(sqlErrorNames) {
		return sqlErrorNames[UnknownErr]
	}
	return sqlErrorNames[e]
}

// IsConstraint reports whether the kind is an integrity constraint failure.
func (e SQLError) IsConstraint() bool {
	switch e {
	case DuplicateKeyErr, NotNullViolationErr, ForeignKeyViolationErr, CheckConstraintViolationErr:
		return true
	default:
		return false
	}
}

// ConstraintViolation wraps a driver error rejected by an integrity
// constraint of the store.
type ConstraintViolation struct {
	Kind SQLError
	Err  error
}

func (e *ConstraintViolation) Error() string {
	return fmt.Sprintf("database: %s: %v", e.Kind, e.Err)
}

func (e *ConstraintViolation) Unwrap() error { return e.Err }

// TranslateError maps driver errors onto the data layer's error kinds.
// Constraint failures become *ConstraintViolation and sql.ErrNoRows becomes
// ErrNotFound; everything else is returned unchanged.
func TranslateError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%w: %w", ErrNotFound, err)
	}
	var cv *ConstraintViolation
	if errors.As(err, &cv) {
		return err
	}
	if is, kind := IsSqlError(err); is && kind.IsConstraint() {
		return &ConstraintViolation{Kind: kind, Err: err}
	}
	return err
}

var mysqlErrorKinds = map[uint16]SQLError{
	1091: NoIndexErr,
	1054: NoColumnErr,
	1061: ExistIndexErr,
	1060: ExistColumnErr,
	1146: NoTableErr,
	1050: ExistTableErr,
	1062: DuplicateKeyErr,
	1048: NotNullViolationErr,
	1216: ForeignKeyViolationErr,
	1217: ForeignKeyViolationErr,
	1451: ForeignKeyViolationErr,
	1452: ForeignKeyViolationErr,
	3819: CheckConstraintViolationErr,
	1265: DataTruncatedErr,
}

var postgresErrorKinds = map[pq.ErrorCode]SQLError{
	"23505": DuplicateKeyErr,
	"23502": NotNullViolationErr,
	"23503": ForeignKeyViolationErr,
	"23514": CheckConstraintViolationErr,
	"22001": DataTruncatedErr,
	"42804": InvalidTypeCastErr,
	"42703": NoColumnErr,
	"42704": NoIndexErr,
	"42P01": NoTableErr,
	"42P07": ExistTableErr,
}

// messageRule matches a lowercased error message when it contains one of
// anyOf (if set) and every entry of allOf.
type messageRule struct {
	kind  SQLError
	anyOf []string
	allOf []string
}

func (r messageRule) match(msg string) bool {
	if len(r.anyOf) > 0 && !slices.ContainsFunc(r.anyOf, func(s string) bool { return strings.Contains(msg, s) }) {
		return false
	}
	for _, s := range r.allOf {
		if !strings.Contains(msg, s) {
			return false
		}
	}
	return true
}

// messageRules classify errors from sqlite and from drivers that only carry
// the SQLSTATE in the text. Order matters.
var messageRules = []messageRule{
	{kind: NoColumnErr, anyOf: []string{"sqlstate 42703", "undefined column", "no such column"}},
	{kind: NoIndexErr, anyOf: []string{"sqlstate 42704", "no such index"}},
	{kind: NoIndexErr, allOf: []string{"does not exist", "index"}},
	{kind: NoTableErr, anyOf: []string{"sqlstate 42p01", "undefined table", "no such table"}},
	{kind: ExistIndexErr, allOf: []string{"already exists", "index"}},
	{kind: ExistTableErr, anyOf: []string{"table", "relation"}, allOf: []string{"already exists"}},
	{kind: DuplicateKeyErr, anyOf: []string{"duplicate key value", "unique constraint failed", "sqlstate 23505"}},
	{kind: NotNullViolationErr, anyOf: []string{"not-null constraint", "not null constraint failed", "sqlstate 23502"}},
	{kind: ForeignKeyViolationErr, anyOf: []string{"foreign key violation", "foreign key constraint failed", "sqlstate 23503"}},
	{kind: CheckConstraintViolationErr, anyOf: []string{"check constraint", "sqlstate 23514"}},
	{kind: DataTruncatedErr, anyOf: []string{"string data right truncation", "data truncated", "sqlstate 22001"}},
	{kind: InvalidTypeCastErr, anyOf: []string{"datatype mismatch", "sqlstate 42804"}},
}

// IsSqlError reports whether err came from the store and, if so, its kind.
// Driver errors of an unmapped code are reported with UnknownErr.
func IsSqlError(err error) (is bool, sqlErr SQLError) {
	if err == nil {
		return false, UnknownErr
	}
	if errors.Is(err, sql.ErrNoRows) {
		return true, NoRowsErr
	}
	var mysqlErr *mysql.MySQLError
	if errors.As(err, &mysqlErr) {
		return true, mysqlErrorKinds[mysqlErr.Number]
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return true, postgresErrorKinds[pqErr.Code]
	}
	msg := strings.ToLower(err.Error())
	for _, rule := range messageRules {
		if rule.match(msg) {
			return true, rule.kind
		}
	}
	return false, UnknownErr
}
