package errors

import (
	stderrs "errors"
	"fmt"

	"github.com/ClickHouse/clickhouse-go/v2"
)

// ClickHouse server exception codes the count oracle classifies
var chCodes = map[int32]classified{
	43:  {ErrorCodeConfig, false},     // ILLEGAL_TYPE_OF_ARGUMENT, startsWith on a non string key
	47:  {ErrorCodeConfig, false},     // UNKNOWN_IDENTIFIER
	60:  {ErrorCodeConfig, false},     // UNKNOWN_TABLE
	81:  {ErrorCodeConfig, false},     // UNKNOWN_DATABASE
	159: {ErrorCodeUnavailable, true}, // TIMEOUT_EXCEEDED
	202: {ErrorCodeUnavailable, true}, // TOO_MANY_SIMULTANEOUS_QUERIES
	209: {ErrorCodeUnavailable, true}, // SOCKET_TIMEOUT
	210: {ErrorCodeUnavailable, true}, // NETWORK_ERROR
	241: {ErrorCodeUnavailable, true}, // MEMORY_LIMIT_EXCEEDED
}

// ExtractClickHouseException returns the server exception behind err, if any
func ExtractClickHouseException(err error) (*clickhouse.Exception, bool) {
	var ex *clickhouse.Exception
	if stderrs.As(err, &ex) {
		return ex, true
	}
	return nil, false
}

// FromClickHouse wraps a clickhouse error with a mapped ErrorCode and message.
// If err is nil, returns nil
func FromClickHouse(err error, msg string) error {
	if err == nil {
		return nil
	}
	if ex, ok := ExtractClickHouseException(err); ok {
		if st, ok := chCodes[ex.Code]; ok {
			return Wrap(err, st.code, msg)
		}
	}
	return Wrap(err, ErrorCodeDB, msg)
}

// FromClickHousef is the formatted variant of FromClickHouse
func FromClickHousef(err error, format string, a ...any) error {
	return FromClickHouse(err, fmt.Sprintf(format, a...))
}
