package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"
)

// mintToken signs claims with a throwaway key. Signatures are never checked
// client-side, so any key works.
func mintToken(t *testing.T, claims jwt.MapClaims) string {
	t.Helper()
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("test-key"))
	require.NoError(t, err)
	return tok
}

func agentToken(t *testing.T, exp time.Time, perms ...any) string {
	t.Helper()
	return mintToken(t, jwt.MapClaims{
		"sub":         "user-42",
		"user_id":     "user-42",
		"role":        "junior_agent",
		"roles":       []any{"junior_agent"},
		"permissions": perms,
		"tenant_id":   "tenant-1",
		"exp":         exp.Unix(),
	})
}
