package credwatch

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/0xmhha/quota-meter/pkg/logger"
)

func newTestWatcher(t *testing.T, path string) Watcher {
	t.Helper()
	w, err := New(Config{Path: path, DebounceInterval: 30 * time.Millisecond}, logger.Noop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = w.Close() })
	return w
}

func waitEvent(t *testing.T, w Watcher) Event {
	t.Helper()
	select {
	case ev, ok := <-w.Events():
		require.True(t, ok, "events channel closed")
		return ev
	case <-time.After(3 * time.Second):
		t.Fatal("timed out waiting for event")
		return Event{}
	}
}

func TestNewEmptyPath(t *testing.T) {
	_, err := New(Config{Path: "  "}, logger.Noop())
	assert.ErrorIs(t, err, ErrEmptyPath)
}

func TestOpString(t *testing.T) {
	tests := []struct {
		op   Op
		want string
	}{
		{OpCreate, "CREATE"},
		{OpWrite, "WRITE"},
		{OpRemove, "REMOVE"},
		{OpRename, "RENAME"},
		{OpChmod, "CHMOD"},
		{Op(0), "UNKNOWN"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, tt.op.String())
	}
}

func TestEmitsEventForCredentialFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "session-key")
	w := newTestWatcher(t, path)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, w.Start(ctx))

	require.NoError(t, os.WriteFile(path, []byte("sk-ant-one"), 0600))

	ev := waitEvent(t, w)
	abs, err := filepath.Abs(path)
	require.NoError(t, err)
	assert.Equal(t, abs, ev.Path)
	assert.False(t, ev.Timestamp.IsZero())
}

func TestIgnoresOtherFiles(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "session-key")
	w := newTestWatcher(t, path)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, w.Start(ctx))

	require.NoError(t, os.WriteFile(filepath.Join(dir, "other"), []byte("x"), 0600))

	select {
	case ev := <-w.Events():
		t.Fatalf("unexpected event %+v", ev)
	case <-time.After(200 * time.Millisecond):
	}
}

func TestDebounceCoalescesBurst(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "session-key")
	w := newTestWatcher(t, path)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, w.Start(ctx))

	for i := 0; i < 5; i++ {
		require.NoError(t, os.WriteFile(path, []byte("sk-ant-burst"), 0600))
	}

	waitEvent(t, w)

	select {
	case ev := <-w.Events():
		t.Fatalf("burst produced a second event %+v", ev)
	case <-time.After(200 * time.Millisecond):
	}
}

func TestRemoveIsReported(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "session-key")
	require.NoError(t, os.WriteFile(path, []byte("sk-ant-x"), 0600))

	w := newTestWatcher(t, path)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, w.Start(ctx))

	require.NoError(t, os.Remove(path))

	ev := waitEvent(t, w)
	assert.Equal(t, OpRemove, ev.Op)
}

func TestStartCreatesMissingDirectory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "session-key")
	w := newTestWatcher(t, path)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, w.Start(ctx))

	info, err := os.Stat(filepath.Dir(path))
	require.NoError(t, err)
	assert.True(t, info.IsDir())
}

func TestStartTwice(t *testing.T) {
	w := newTestWatcher(t, filepath.Join(t.TempDir(), "session-key"))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, w.Start(ctx))
	assert.ErrorIs(t, w.Start(ctx), ErrAlreadyStarted)
}

func TestCloseClosesChannels(t *testing.T) {
	w, err := New(Config{Path: filepath.Join(t.TempDir(), "session-key")}, logger.Noop())
	require.NoError(t, err)

	require.NoError(t, w.Start(context.Background()))
	require.NoError(t, w.Close())
	require.NoError(t, w.Close())

	_, ok := <-w.Events()
	assert.False(t, ok)
	_, ok = <-w.Errors()
	assert.False(t, ok)

	assert.ErrorIs(t, w.Start(context.Background()), ErrWatcherClosed)
}
