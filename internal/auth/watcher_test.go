package auth

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentmitra/portalctl/internal/log"
)

func TestWatcher_ExternalLogout(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "session.json")

	// Another process owns this store; it publishes nowhere we can see.
	other := NewFileStore(path, nil)
	require.NoError(t, other.Save(&Session{AccessToken: agentToken(t, time.Now().Add(time.Hour))}))

	bus := NewBus()
	mine := NewFileStore(path, bus)
	c := NewContext(mine, nil, bus, log.Discard())
	defer c.Close()
	c.Init(context.Background())
	require.True(t, c.IsAuthenticated())

	w, err := NewWatcher(path, bus, log.Discard())
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, w.Start(ctx))
	defer w.Close()

	require.NoError(t, other.Clear())

	assert.Eventually(t, func() bool { return !c.IsAuthenticated() }, 3*time.Second, 20*time.Millisecond)
}

func TestWatcher_IgnoresOtherFiles(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "session.json")

	bus := NewBus()
	rec := &recorder{}
	bus.Subscribe(rec.handle)

	w, err := NewWatcher(path, bus, log.Discard())
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, w.Start(ctx))

	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte("a: b"), 0o600))
	time.Sleep(4 * DefaultDebounce)
	assert.Empty(t, rec.kinds())

	require.NoError(t, w.Close())
	require.NoError(t, w.Close())
}
