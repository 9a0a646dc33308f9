// Package dberror classifies failures returned by the analytics database so
// they can be reported to callers and recorded in metrics.
package dberror

import (
	"context"
	"errors"
	"net"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
)

// ErrorType classifies database errors for appropriate handling.
type ErrorType int

const (
	// ErrorTypeUnknown is an unclassified error.
	ErrorTypeUnknown ErrorType = iota
	// ErrorTypeConnectivity indicates the database is unreachable.
	ErrorTypeConnectivity
	// ErrorTypeTimeout indicates the operation timed out.
	ErrorTypeTimeout
	// ErrorTypeAuth indicates authentication/authorization failure.
	ErrorTypeAuth
	// ErrorTypeQuery indicates a query/syntax error.
	ErrorTypeQuery
)

// String returns the label used in logs and metrics.
func (t ErrorType) String() string {
	switch t {
	case ErrorTypeConnectivity:
		return "connectivity"
	case ErrorTypeTimeout:
		return "timeout"
	case ErrorTypeAuth:
		return "auth"
	case ErrorTypeQuery:
		return "query"
	default:
		return "unknown"
	}
}

// Classify determines the type of database error.
func Classify(err error) ErrorType {
	if err == nil {
		return ErrorTypeUnknown
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return ErrorTypeTimeout
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return classifySQLState(pgErr.Code)
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		if netErr.Timeout() {
			return ErrorTypeTimeout
		}
		return ErrorTypeConnectivity
	}

	errStr := strings.ToLower(err.Error())

	connectivityPatterns := []string{
		"connection refused",
		"connection reset",
		"connection closed",
		"no such host",
		"dial tcp",
		"dial unix",
		"eof",
		"broken pipe",
		"network is unreachable",
		"no route to host",
		"client is closing",
		"server shutdown",
		"pool is closed",
	}
	for _, pattern := range connectivityPatterns {
		if strings.Contains(errStr, pattern) {
			return ErrorTypeConnectivity
		}
	}

	timeoutPatterns := []string{
		"timeout",
		"deadline exceeded",
		"timed out",
		"timeout_exceeded",
	}
	for _, pattern := range timeoutPatterns {
		if strings.Contains(errStr, pattern) {
			return ErrorTypeTimeout
		}
	}

	authPatterns := []string{
		"unauthorized",
		"authentication failed",
		"invalid credentials",
		"access denied",
		"permission denied",
	}
	for _, pattern := range authPatterns {
		if strings.Contains(errStr, pattern) {
			return ErrorTypeAuth
		}
	}

	queryPatterns := []string{
		"syntax error",
		"unknown column",
		"unknown identifier",
		"unknown table",
		"does not exist",
	}
	for _, pattern := range queryPatterns {
		if strings.Contains(errStr, pattern) {
			return ErrorTypeQuery
		}
	}

	return ErrorTypeUnknown
}

// classifySQLState maps a Postgres SQLSTATE to an ErrorType.
func classifySQLState(code string) ErrorType {
	switch {
	case code == "57014": // query_canceled, raised by statement_timeout
		return ErrorTypeTimeout
	case strings.HasPrefix(code, "08"), code == "57P01", code == "57P03":
		return ErrorTypeConnectivity
	case strings.HasPrefix(code, "28"), code == "42501":
		return ErrorTypeAuth
	case strings.HasPrefix(code, "42"), strings.HasPrefix(code, "22"):
		return ErrorTypeQuery
	default:
		return ErrorTypeUnknown
	}
}

// UserMessage returns a user-friendly error message based on the error type.
func UserMessage(err error) string {
	if err == nil {
		return ""
	}

	switch Classify(err) {
	case ErrorTypeConnectivity:
		return "The database is temporarily unavailable. Please try again in a moment."
	case ErrorTypeTimeout:
		return "The query took too long to run. Please try a narrower question."
	case ErrorTypeAuth:
		return "The database rejected our credentials. Please contact support."
	default:
		return "There was an error executing the query on the database."
	}
}
