// Package errors defines domain-level errors used throughout mcphub.
// Handlers return these (wrapped with context) and the API boundary translates them into HTTP status codes.
//
// NOTE: When adding a new error here you must also:
// 1. Add it to mapError (internal/daemon/api_server.go)
// 2. Add a test case to TestMapError (internal/daemon/api_server_test.go)
//
// Unmapped errors default to HTTP 500 Internal Server Error.
package errors

import (
	"errors"
)

var (
	// ErrUnauthorized indicates that the request carries no valid session.
	// Maps to HTTP 401 Unauthorized.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrAccessDenied indicates the caller has a valid session but fails the ownership or visibility check.
	// Maps to HTTP 401 Unauthorized (not 403), matching how clients of this API detect denial.
	ErrAccessDenied = errors.New("access denied")

	// ErrBadRequest indicates that the client provided invalid input or made a malformed request.
	// Maps to HTTP 400 Bad Request.
	ErrBadRequest = errors.New("bad request")

	// ErrServerNotFound indicates that the requested MCP server record does not exist.
	// Maps to HTTP 404 Not Found.
	ErrServerNotFound = errors.New("server not found")

	// ErrServerNameTaken indicates that another MCP server record already uses the requested name.
	// Maps to HTTP 500 when returned from the create route, which reports save failures verbatim.
	ErrServerNameTaken = errors.New("server name already exists")

	// ErrClientNotConnected indicates there is no connected live client for the server.
	// Maps to HTTP 502 Bad Gateway.
	ErrClientNotConnected = errors.New("client not connected")

	// ErrToolCallFailed indicates that calling a tool on an MCP server failed.
	// Maps to HTTP 502 Bad Gateway.
	ErrToolCallFailed = errors.New("tool call failed")

	// ErrFileNotFound indicates that no stored file exists for the given key.
	// Maps to HTTP 404 Not Found.
	ErrFileNotFound = errors.New("file not found")

	// ErrFileTooLarge indicates that an uploaded file exceeds the configured size ceiling.
	// Maps to HTTP 413 Request Entity Too Large.
	ErrFileTooLarge = errors.New("file too large")

	// ErrStorage indicates the storage backend rejected an operation.
	// Maps to HTTP 400 Bad Request, since these are typically caused by the supplied file or key.
	ErrStorage = errors.New("file storage error")

	// ErrPersistence indicates the repository failed to read or write a record.
	// Maps to HTTP 500 Internal Server Error.
	ErrPersistence = errors.New("persistence error")
)
