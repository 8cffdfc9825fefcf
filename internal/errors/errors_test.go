package errors

import (
	"errors"
	"fmt"
	"strings"
	"testing"
)

func TestNew(t *testing.T) {
	err := New(ErrCodeAuthRequired, "test error message")

	if err.Code != ErrCodeAuthRequired {
		t.Errorf("expected code %s, got %s", ErrCodeAuthRequired, err.Code)
	}

	if err.Message != "test error message" {
		t.Errorf("expected message 'test error message', got '%s'", err.Message)
	}

	if err.Cause != nil {
		t.Errorf("expected nil cause, got %v", err.Cause)
	}
}

func TestWrap(t *testing.T) {
	cause := fmt.Errorf("underlying error")
	err := Wrap(ErrCodeFileReadFailed, "failed to read file", cause)

	if err.Code != ErrCodeFileReadFailed {
		t.Errorf("expected code %s, got %s", ErrCodeFileReadFailed, err.Code)
	}

	if !errors.Is(err, cause) {
		t.Errorf("Wrap should support errors.Is")
	}
}

func TestErrorFormatting(t *testing.T) {
	tests := []struct {
		name     string
		err      *PortalError
		wantCode string
		wantMsg  string
	}{
		{
			name:     "simple error",
			err:      New(ErrCodeImportEmptyFile, "CSV file is empty"),
			wantCode: "IMPORT-003",
			wantMsg:  "CSV file is empty",
		},
		{
			name:     "error with cause",
			err:      Wrap(ErrCodeFileReadFailed, "read failed", fmt.Errorf("permission denied")),
			wantCode: "IO-002",
			wantMsg:  "permission denied",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			errStr := tt.err.Error()

			if !strings.Contains(errStr, tt.wantCode) {
				t.Errorf("error string should contain code %s, got: %s", tt.wantCode, errStr)
			}

			if !strings.Contains(errStr, tt.wantMsg) {
				t.Errorf("error string should contain message '%s', got: %s", tt.wantMsg, errStr)
			}
		})
	}
}

func TestSuggestionsAndDocs(t *testing.T) {
	err := New(ErrCodeConfigInvalid, "bad config").
		WithSuggestions("first", "second").
		WithSuggestion("third").
		WithDocs("https://example.com/docs")

	if len(err.Suggestions) != 3 {
		t.Errorf("expected 3 suggestions, got %d", len(err.Suggestions))
	}

	errStr := err.Error()
	for _, want := range []string{"Suggestions:", "first", "third", "Documentation:", "https://example.com/docs"} {
		if !strings.Contains(errStr, want) {
			t.Errorf("error string should contain %q, got: %s", want, errStr)
		}
	}
}

func TestIsMatchesByCode(t *testing.T) {
	err := fmt.Errorf("wrapped: %w", New(ErrCodeImportInProgress, "an import is already running"))

	if !errors.Is(err, New(ErrCodeImportInProgress, "")) {
		t.Errorf("errors.Is should match on code")
	}

	if errors.Is(err, New(ErrCodeImportBlocked, "")) {
		t.Errorf("errors.Is should not match a different code")
	}
}

func TestCodeOfAndHasCode(t *testing.T) {
	inner := New(ErrCodeAPIUnreachable, "down")
	outer := Wrap(ErrCodeAuthSessionExpired, "refresh failed", inner)
	wrapped := fmt.Errorf("context: %w", outer)

	if got := CodeOf(wrapped); got != ErrCodeAuthSessionExpired {
		t.Errorf("CodeOf() = %s, want %s", got, ErrCodeAuthSessionExpired)
	}

	if !HasCode(wrapped, ErrCodeAPIUnreachable) {
		t.Errorf("HasCode should find the inner code")
	}

	if HasCode(wrapped, ErrCodeImportBlocked) {
		t.Errorf("HasCode should not find an absent code")
	}

	if CodeOf(fmt.Errorf("plain")) != "" {
		t.Errorf("CodeOf a plain error should be empty")
	}
}

func TestNewAPIError(t *testing.T) {
	tests := []struct {
		status   int
		wantCode ErrorCode
	}{
		{status: 404, wantCode: ErrCodeAPINotFound},
		{status: 422, wantCode: ErrCodeAPIRequest},
		{status: 500, wantCode: ErrCodeAPIRequest},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("status %d", tt.status), func(t *testing.T) {
			err := NewAPIError(tt.status, "Customer with this phone already exists")

			if err.Code != tt.wantCode {
				t.Errorf("expected code %s, got %s", tt.wantCode, err.Code)
			}
			if err.Status != tt.status {
				t.Errorf("expected status %d, got %d", tt.status, err.Status)
			}
			if err.Message != "Customer with this phone already exists" {
				t.Errorf("server message should be kept verbatim, got %q", err.Message)
			}
		})
	}
}

func TestNewUnsupportedFileTypeError(t *testing.T) {
	err := NewUnsupportedFileTypeError("pdf")

	if err.Code != ErrCodeImportUnsupportedType {
		t.Errorf("expected code %s, got %s", ErrCodeImportUnsupportedType, err.Code)
	}

	if err.Message != "Unsupported file type: pdf" {
		t.Errorf("unexpected message %q", err.Message)
	}
}

func TestNewForbiddenError(t *testing.T) {
	err := NewForbiddenError("/users", []string{"users: read"})

	if err.Code != ErrCodeAccessForbidden {
		t.Errorf("expected code %s, got %s", ErrCodeAccessForbidden, err.Code)
	}

	if !strings.Contains(err.Error(), "users: read") {
		t.Errorf("error should list the missing permission")
	}
}

func TestNewSessionExpiredError(t *testing.T) {
	cause := fmt.Errorf("refresh rejected")
	err := NewSessionExpiredError(cause)

	if !errors.Is(err, cause) {
		t.Errorf("cause should be preserved")
	}

	if !strings.Contains(err.Error(), "portalctl auth login") {
		t.Errorf("suggestion should mention the login command")
	}
}

func TestNewFileUnmarshalError(t *testing.T) {
	cause := fmt.Errorf("invalid YAML syntax at line 5")
	err := NewFileUnmarshalError("/path/to/config.yaml", "YAML", cause)

	if err.Code != ErrCodeFileUnmarshal {
		t.Errorf("expected code %s, got %s", ErrCodeFileUnmarshal, err.Code)
	}

	if err.Cause != cause {
		t.Errorf("expected cause to be preserved")
	}

	if !strings.Contains(err.Message, "/path/to/config.yaml") {
		t.Errorf("error message should contain file path")
	}
}
