// Package apierr is the error model shared by every feature package.
// Services return *APIError; handlers translate it to an HTTP status and
// the {"error":{"code","message"}} body. Anything else becomes INTERNAL
// without leaking store internals to the client.
package apierr

import (
	"errors"
	"fmt"
	"net/http"

	mysql "github.com/go-sql-driver/mysql"
)

type Code string

const (
	CodeUnauthorized    Code = "UNAUTHORIZED"
	CodeForbidden       Code = "FORBIDDEN"
	CodeNotFound        Code = "NOT_FOUND"
	CodeInvalidArgument Code = "INVALID_ARGUMENT"
	CodeConflict        Code = "CONFLICT"
	CodeInternal        Code = "INTERNAL"
)

type APIError struct {
	Code    Code
	Message string
	// Detail is operator-facing diagnostics, never serialized to clients.
	Detail string
}

func (e *APIError) Error() string { return fmt.Sprintf("%s: %s", e.Code, e.Message) }

func Unauthorized(msg string) *APIError { return &APIError{Code: CodeUnauthorized, Message: msg} }
func Forbidden(msg string) *APIError    { return &APIError{Code: CodeForbidden, Message: msg} }
func NotFound(msg string) *APIError     { return &APIError{Code: CodeNotFound, Message: msg} }
func Invalid(msg string) *APIError      { return &APIError{Code: CodeInvalidArgument, Message: msg} }
func Conflict(msg string) *APIError     { return &APIError{Code: CodeConflict, Message: msg} }

func Internal(msg string, err error) *APIError {
	e := &APIError{Code: CodeInternal, Message: msg}
	if err != nil {
		e.Detail = err.Error()
	}
	return e
}

func ToHTTPStatus(err error) int {
	var api *APIError
	if errors.As(err, &api) {
		switch api.Code {
		case CodeUnauthorized:
			return http.StatusUnauthorized
		case CodeForbidden:
			return http.StatusForbidden
		case CodeNotFound:
			return http.StatusNotFound
		case CodeInvalidArgument:
			return http.StatusBadRequest
		case CodeConflict:
			return http.StatusConflict
		default:
			return http.StatusInternalServerError
		}
	}
	return http.StatusInternalServerError
}

// MySQL server error numbers the stores care about.
const (
	mysqlErrDuplicateEntry = 1062
	mysqlErrForeignKey     = 1452
	mysqlErrRowIsReferred  = 1451
)

// FromStore maps a store-level write failure to the taxonomy: duplicate
// keys and referenced rows come back as CONFLICT, broken references as
// INVALID_ARGUMENT, everything else as INTERNAL with the raw error kept
// in Detail.
func FromStore(msg string, err error) *APIError {
	var me *mysql.MySQLError
	if errors.As(err, &me) {
		switch me.Number {
		case mysqlErrDuplicateEntry, mysqlErrRowIsReferred:
			return Conflict(msg)
		case mysqlErrForeignKey:
			return Invalid(msg)
		}
	}
	return Internal(msg, err)
}

// IsDuplicate reports whether err is a MySQL duplicate-key error. Stores
// use it where losing an insert race has a dedicated recovery path.
func IsDuplicate(err error) bool {
	var me *mysql.MySQLError
	return errors.As(err, &me) && me.Number == mysqlErrDuplicateEntry
}
