package exitcode

import (
	stderrors "errors"
	"os"
	"strings"

	"github.com/agentmitra/portalctl/internal/errors"
)

// Exit codes for consistent error handling across the CLI
const (
	// Success indicates successful execution
	Success = 0

	// GeneralError indicates a general error condition
	GeneralError = 1

	// UsageError indicates invalid command usage (bad flags, missing args, etc.)
	UsageError = 2

	// Forbidden indicates the user lacks a required role or permission
	Forbidden = 3

	// ValidationFailed indicates an import file failed local or server validation
	ValidationFailed = 4

	// AuthError indicates a missing, invalid or expired session
	AuthError = 5

	// NetworkError indicates the portal API could not be reached
	NetworkError = 6

	// Interrupted indicates the command was cancelled by a signal
	Interrupted = 130
)

// Exit terminates the program with the given exit code
func Exit(code int) {
	os.Exit(code)
}

// ExitWithError exits with an appropriate code based on error type
func ExitWithError(err error) {
	if err == nil {
		Exit(Success)
		return
	}

	Exit(DetermineExitCode(err))
}

// DetermineExitCode maps an error to an exit code. Coded portal errors are
// classified by their code prefix; anything else falls back to message
// inspection for cobra usage errors.
func DetermineExitCode(err error) int {
	if err == nil {
		return Success
	}

	var pe *errors.PortalError
	if stderrors.As(err, &pe) {
		code := string(pe.Code)
		switch {
		case strings.HasPrefix(code, "AUTH-"):
			return AuthError
		case pe.Code == errors.ErrCodeAccessForbidden:
			return Forbidden
		case pe.Code == errors.ErrCodeAPIUnreachable:
			return NetworkError
		case pe.Code == errors.ErrCodeImportBlocked:
			return ValidationFailed
		case strings.HasPrefix(code, "CONFIG-"), strings.HasPrefix(code, "CLI-"):
			return UsageError
		}
		if pe.Status == 401 {
			return AuthError
		}
		if pe.Status == 403 {
			return Forbidden
		}
		return GeneralError
	}

	errMsg := strings.ToLower(err.Error())
	if strings.Contains(errMsg, "unknown flag") || strings.Contains(errMsg, "unknown command") {
		return UsageError
	}
	if strings.Contains(errMsg, "required flag") || strings.Contains(errMsg, "accepts") && strings.Contains(errMsg, "arg(s)") {
		return UsageError
	}

	return GeneralError
}

// GetExitCodeDescription returns a human-readable description of an exit code
func GetExitCodeDescription(code int) string {
	switch code {
	case Success:
		return "Success"
	case GeneralError:
		return "General error"
	case UsageError:
		return "Usage error (invalid flags or arguments)"
	case Forbidden:
		return "Access denied"
	case ValidationFailed:
		return "Import validation failed"
	case AuthError:
		return "Authentication error"
	case NetworkError:
		return "Network error"
	case Interrupted:
		return "Interrupted"
	default:
		return "Unknown error"
	}
}
