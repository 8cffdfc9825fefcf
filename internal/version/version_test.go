package version

import (
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
)

func stamp(t *testing.T, v, commit, date string) {
	t.Helper()
	origVersion, origCommit, origDate := Version, Commit, Date
	Version, Commit, Date = v, commit, date
	t.Cleanup(func() {
		Version, Commit, Date = origVersion, origCommit, origDate
	})
}

func TestGetInfo(t *testing.T) {
	stamp(t, "1.0.0", "abc123def456", "2026-01-01T12:00:00Z")

	info := GetInfo()

	assert.Equal(t, "1.0.0", info.Version)
	assert.Equal(t, "abc123def456", info.Commit)
	assert.Equal(t, "2026-01-01T12:00:00Z", info.Date)
	assert.Equal(t, runtime.Version(), info.GoVersion)
	assert.Equal(t, runtime.GOOS+"/"+runtime.GOARCH, info.Platform)
}

func TestInfoString(t *testing.T) {
	tests := []struct {
		name   string
		commit string
		want   string
	}{
		{"long commit is truncated", "abc123def456", "(abc123de)"},
		{"short commit is kept", "abc", "(abc)"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			stamp(t, "1.0.0", tt.commit, "2026-01-01")

			s := GetInfo().String()
			assert.Contains(t, s, "portalctl 1.0.0")
			assert.Contains(t, s, tt.want)
			assert.Contains(t, s, "built 2026-01-01")
		})
	}
}

func TestShortAndUserAgent(t *testing.T) {
	stamp(t, "2.1.0", "unknown", "unknown")

	info := GetInfo()
	assert.Equal(t, "2.1.0", info.Short())
	assert.Equal(t, "portalctl/2.1.0 ("+runtime.GOOS+"/"+runtime.GOARCH+")", info.UserAgent())
}
