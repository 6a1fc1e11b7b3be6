package errors

// Postgres-specific helpers for mapping pgx errors to project ErrorCode and retry semantics

import (
	"context"
	stderrs "errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
)

// classified is the ErrorCode and retry decision for one server error code
type classified struct {
	code  ErrorCode
	retry bool
}

// SQLSTATE codes the recovery log and count oracle care about. Anything else is
// ErrorCodeDB and not retried
var sqlStates = map[string]classified{
	"23505": {ErrorCodeConflict, false},        // unique_violation
	"22P02": {ErrorCodeInvalidArgument, false}, // invalid_text_representation
	"42P01": {ErrorCodeConfig, false},          // undefined_table
	"42703": {ErrorCodeConfig, false},          // undefined_column
	"42883": {ErrorCodeConfig, false},          // undefined_function, starts_with on a non text key

	"40001": {ErrorCodeDB, true},           // serialization_failure
	"40P01": {ErrorCodeDB, true},           // deadlock_detected
	"55P03": {ErrorCodeDB, true},           // lock_not_available
	"57014": {ErrorCodeUnavailable, true},  // query_canceled, statement_timeout
	"57P01": {ErrorCodeUnavailable, true},  // admin_shutdown
	"57P03": {ErrorCodeUnavailable, true},  // cannot_connect_now
	"53300": {ErrorCodeUnavailable, true},  // too_many_connections
	"25006": {ErrorCodeUnavailable, false}, // read_only_sql_transaction
}

// driver text seen on commit or connection loss when no PgError is available
var pgRetryText = []string{
	"commit unexpectedly resulted in rollback",
	"deadlock detected",
	"could not serialize access",
	"canceling statement due to statement timeout",
	"connection reset by peer",
	"broken pipe",
	"unexpected eof",
}

// ExtractPgError returns (*pgconn.PgError, true) if the root cause is a PgError
func ExtractPgError(err error) (*pgconn.PgError, bool) {
	var pgErr *pgconn.PgError
	if stderrs.As(Root(err), &pgErr) {
		return pgErr, true
	}
	return nil, false
}

// IsSQLState reports whether the error is a Postgres error with the given SQLSTATE code
func IsSQLState(err error, code string) bool {
	pgErr, ok := ExtractPgError(err)
	return ok && pgErr.Code == code
}

// IsUndefinedRelation reports whether the query referenced a missing table or column,
// which for the count oracle means a misconfigured table/column name
func IsUndefinedRelation(err error) bool {
	return IsSQLState(err, "42P01") || IsSQLState(err, "42703")
}

// DBErrorCode maps a Postgres error to an ErrorCode with an ok flag
// !ok means err wasn't a PgError; caller may fall back to generic handling
func DBErrorCode(err error) (ErrorCode, bool) {
	var pgErr *pgconn.PgError
	if !stderrs.As(err, &pgErr) {
		return ErrorCodeUnknown, false
	}
	if st, ok := sqlStates[pgErr.Code]; ok {
		return st.code, true
	}
	return ErrorCodeDB, true
}

// FromPostgres wraps a pg error with a mapped ErrorCode and message.
// If err is nil, returns nil
func FromPostgres(err error, msg string) error {
	if err == nil {
		return nil
	}
	if code, ok := DBErrorCode(err); ok {
		return Wrap(err, code, msg)
	}
	return Wrap(err, ErrorCodeDB, msg)
}

// FromPostgresf is the formatted variant of FromPostgres
func FromPostgresf(err error, format string, a ...any) error {
	return FromPostgres(err, fmt.Sprintf(format, a...))
}

// IsRetryable reports whether a database error represents a transient condition
// worth retrying. Structured errors from either backend are classified by code,
// anything else by the driver text
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}

	// local cancellations/timeouts belong to the caller
	if stderrs.Is(err, context.Canceled) || stderrs.Is(err, context.DeadlineExceeded) {
		return false
	}

	root := Root(err)
	var pgErr *pgconn.PgError
	if stderrs.As(root, &pgErr) {
		return sqlStates[pgErr.Code].retry
	}
	if ex, ok := ExtractClickHouseException(root); ok {
		return chCodes[ex.Code].retry
	}

	s := strings.ToLower(root.Error())
	for _, frag := range pgRetryText {
		if strings.Contains(s, frag) {
			return true
		}
	}
	return false
}
