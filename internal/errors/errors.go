package errors

import (
	stderrors "errors"
	"fmt"
	"strings"
)

// ErrorCode represents a unique error identifier
type ErrorCode string

// Error categories
const (
	// Authentication errors (AUTH-001 to AUTH-099)
	ErrCodeAuthRequired       ErrorCode = "AUTH-001"
	ErrCodeAuthSessionExpired ErrorCode = "AUTH-002"
	ErrCodeAuthInvalidToken   ErrorCode = "AUTH-003"
	ErrCodeAuthLoginFailed    ErrorCode = "AUTH-004"
	ErrCodeAuthOTPFailed      ErrorCode = "AUTH-005"

	// Access control errors (ACCESS-001 to ACCESS-099)
	ErrCodeAccessForbidden ErrorCode = "ACCESS-001"
	ErrCodeAccessLoading   ErrorCode = "ACCESS-002"

	// API errors (API-001 to API-099)
	ErrCodeAPIUnreachable ErrorCode = "API-001"
	ErrCodeAPIDecode      ErrorCode = "API-002"
	ErrCodeAPIRequest     ErrorCode = "API-003"
	ErrCodeAPINotFound    ErrorCode = "API-004"

	// Import errors (IMPORT-001 to IMPORT-099)
	ErrCodeImportUnsupportedType ErrorCode = "IMPORT-001"
	ErrCodeImportParseFailed     ErrorCode = "IMPORT-002"
	ErrCodeImportEmptyFile       ErrorCode = "IMPORT-003"
	ErrCodeImportSheetNotFound   ErrorCode = "IMPORT-004"
	ErrCodeImportInvalidState    ErrorCode = "IMPORT-005"
	ErrCodeImportBlocked         ErrorCode = "IMPORT-006"
	ErrCodeImportInProgress      ErrorCode = "IMPORT-007"
	ErrCodeImportExportFailed    ErrorCode = "IMPORT-008"

	// Configuration errors (CONFIG-001 to CONFIG-099)
	ErrCodeConfigInvalid ErrorCode = "CONFIG-001"
	ErrCodeConfigUnknown ErrorCode = "CONFIG-002"

	// Command-line usage errors (CLI-001 to CLI-099)
	ErrCodeUsage          ErrorCode = "CLI-001"
	ErrCodeNotInteractive ErrorCode = "CLI-002"

	// File I/O errors (IO-001 to IO-099)
	ErrCodeFileNotFound    ErrorCode = "IO-001"
	ErrCodeFileReadFailed  ErrorCode = "IO-002"
	ErrCodeFileWriteFailed ErrorCode = "IO-003"
	ErrCodeDirectoryFailed ErrorCode = "IO-004"
	ErrCodeFileUnmarshal   ErrorCode = "IO-005"
	ErrCodeFileMarshal     ErrorCode = "IO-006"
)

const docsBase = "https://docs.agentmitra.in/portalctl"

// PortalError represents an enhanced error with code, suggestions, and documentation
type PortalError struct {
	Code        ErrorCode
	Message     string
	Suggestions []string
	DocsURL     string
	// Status is the HTTP status returned by the portal API, zero when the
	// error did not come from a response.
	Status int
	Cause  error
}

// Error implements the error interface
func (e *PortalError) Error() string {
	var b strings.Builder

	b.WriteString(fmt.Sprintf("[%s] %s", e.Code, e.Message))

	if e.Cause != nil {
		b.WriteString(fmt.Sprintf(": %v", e.Cause))
	}

	if len(e.Suggestions) > 0 {
		b.WriteString("\n\nSuggestions:")
		for _, suggestion := range e.Suggestions {
			b.WriteString(fmt.Sprintf("\n  • %s", suggestion))
		}
	}

	if e.DocsURL != "" {
		b.WriteString(fmt.Sprintf("\n\nDocumentation: %s", e.DocsURL))
	}

	return b.String()
}

// Unwrap implements error unwrapping for errors.Is and errors.As
func (e *PortalError) Unwrap() error {
	return e.Cause
}

// Is matches another PortalError by code so sentinel values can be
// compared with errors.Is.
func (e *PortalError) Is(target error) bool {
	t, ok := target.(*PortalError)
	if !ok {
		return false
	}
	return t.Code == e.Code && (t.Message == "" || t.Message == e.Message)
}

// New creates a new PortalError
func New(code ErrorCode, message string) *PortalError {
	return &PortalError{
		Code:    code,
		Message: message,
	}
}

// Wrap creates a new PortalError wrapping an existing error
func Wrap(code ErrorCode, message string, cause error) *PortalError {
	return &PortalError{
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

// WithSuggestion adds a suggestion to the error
func (e *PortalError) WithSuggestion(suggestion string) *PortalError {
	e.Suggestions = append(e.Suggestions, suggestion)
	return e
}

// WithSuggestions adds multiple suggestions to the error
func (e *PortalError) WithSuggestions(suggestions ...string) *PortalError {
	e.Suggestions = append(e.Suggestions, suggestions...)
	return e
}

// WithDocs adds a documentation URL to the error
func (e *PortalError) WithDocs(url string) *PortalError {
	e.DocsURL = url
	return e
}

// WithStatus records the HTTP status the error was derived from.
func (e *PortalError) WithStatus(status int) *PortalError {
	e.Status = status
	return e
}

// CodeOf returns the code of the first PortalError in the chain, or "".
func CodeOf(err error) ErrorCode {
	var pe *PortalError
	if stderrors.As(err, &pe) {
		return pe.Code
	}
	return ""
}

// HasCode reports whether err carries the given code anywhere in its chain.
func HasCode(err error, code ErrorCode) bool {
	for err != nil {
		var pe *PortalError
		if !stderrors.As(err, &pe) {
			return false
		}
		if pe.Code == code {
			return true
		}
		err = pe.Cause
	}
	return false
}

// Common error constructors for frequently used errors

// NewAuthRequiredError reports a missing or unusable session.
func NewAuthRequiredError() *PortalError {
	return New(ErrCodeAuthRequired, "not logged in").
		WithSuggestion("Run 'portalctl auth login' to start a session").
		WithDocs(docsBase + "#authentication")
}

// NewSessionExpiredError reports a session that could not be refreshed.
func NewSessionExpiredError(cause error) *PortalError {
	return Wrap(ErrCodeAuthSessionExpired, "session expired and could not be refreshed", cause).
		WithSuggestion("Run 'portalctl auth login' to sign in again").
		WithDocs(docsBase + "#authentication")
}

// NewForbiddenError reports a route or command the user may not use.
func NewForbiddenError(route string, missing []string) *PortalError {
	msg := fmt.Sprintf("access denied to %s", route)
	e := New(ErrCodeAccessForbidden, msg)
	if len(missing) > 0 {
		e.WithSuggestion("Missing: " + strings.Join(missing, ", "))
	}
	return e.WithSuggestion("Ask an administrator to grant the required role or permission")
}

// NewUnreachableError reports a transport failure talking to the API.
func NewUnreachableError(baseURL string, cause error) *PortalError {
	return Wrap(ErrCodeAPIUnreachable, "cannot connect to the portal API", cause).
		WithSuggestion(fmt.Sprintf("Check that %s is reachable", baseURL)).
		WithSuggestion("Set PORTAL_API_URL or 'api_url' in the config file to point at the right server")
}

// NewAPIError reports a non-success response carrying a server message.
func NewAPIError(status int, message string) *PortalError {
	code := ErrCodeAPIRequest
	if status == 404 {
		code = ErrCodeAPINotFound
	}
	return New(code, message).WithStatus(status)
}

// NewUnsupportedFileTypeError reports an import file with an unknown extension.
func NewUnsupportedFileTypeError(ext string) *PortalError {
	return New(ErrCodeImportUnsupportedType, fmt.Sprintf("Unsupported file type: %s", ext)).
		WithSuggestion("Use a .csv, .xlsx or .xls file")
}

// NewFileNotFoundError creates a file not found error
func NewFileNotFoundError(path string) *PortalError {
	return New(ErrCodeFileNotFound, fmt.Sprintf("file not found: %s", path)).
		WithSuggestion("Check if the file path is correct").
		WithSuggestion("Verify the file exists and you have read permissions")
}

// NewFileUnmarshalError creates an unmarshal error
func NewFileUnmarshalError(path string, format string, cause error) *PortalError {
	return Wrap(ErrCodeFileUnmarshal, fmt.Sprintf("failed to parse %s file: %s", format, path), cause).
		WithSuggestion("Check the file syntax and format").
		WithSuggestion(fmt.Sprintf("Ensure the file is valid %s", format))
}
