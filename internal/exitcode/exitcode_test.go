package exitcode

import (
	stderrors "errors"
	"fmt"
	"testing"

	"github.com/agentmitra/portalctl/internal/errors"
)

func TestDetermineExitCode(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected int
	}{
		{
			name:     "nil error returns success",
			err:      nil,
			expected: Success,
		},
		{
			name:     "auth required",
			err:      errors.NewAuthRequiredError(),
			expected: AuthError,
		},
		{
			name:     "session expired wrapped by fmt",
			err:      fmt.Errorf("list customers: %w", errors.NewSessionExpiredError(nil)),
			expected: AuthError,
		},
		{
			name:     "forbidden route",
			err:      errors.NewForbiddenError("/users", nil),
			expected: Forbidden,
		},
		{
			name:     "unreachable api",
			err:      errors.NewUnreachableError("http://localhost:8012", stderrors.New("connection refused")),
			expected: NetworkError,
		},
		{
			name:     "import blocked by invalid rows",
			err:      errors.New(errors.ErrCodeImportBlocked, "3 rows failed validation"),
			expected: ValidationFailed,
		},
		{
			name:     "server 403",
			err:      errors.NewAPIError(403, "Insufficient permissions"),
			expected: Forbidden,
		},
		{
			name:     "server 500",
			err:      errors.NewAPIError(500, "Internal error"),
			expected: GeneralError,
		},
		{
			name:     "missing flag",
			err:      errors.New(errors.ErrCodeUsage, "--phone is required"),
			expected: UsageError,
		},
		{
			name:     "bad config",
			err:      errors.New(errors.ErrCodeConfigUnknown, "unknown key"),
			expected: UsageError,
		},
		{
			name:     "cobra unknown flag",
			err:      stderrors.New("unknown flag: --nope"),
			expected: UsageError,
		},
		{
			name:     "plain error",
			err:      stderrors.New("something broke"),
			expected: GeneralError,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := DetermineExitCode(tt.err); got != tt.expected {
				t.Errorf("DetermineExitCode() = %d, want %d", got, tt.expected)
			}
		})
	}
}

func TestGetExitCodeDescription(t *testing.T) {
	for _, code := range []int{Success, GeneralError, UsageError, Forbidden, ValidationFailed, AuthError, NetworkError, Interrupted} {
		if desc := GetExitCodeDescription(code); desc == "Unknown error" {
			t.Errorf("code %d should have a description", code)
		}
	}

	if GetExitCodeDescription(99) != "Unknown error" {
		t.Errorf("unmapped code should be unknown")
	}
}
