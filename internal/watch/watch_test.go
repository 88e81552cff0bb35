package watch

import (
	"context"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leapstack-labs/leapbuild/internal/testutil"
)

func startWatcher(t *testing.T, w *Watcher) *atomic.Int32 {
	t.Helper()
	var rebuilds atomic.Int32
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- w.Run(ctx, func(context.Context) { rebuilds.Add(1) })
	}()
	t.Cleanup(func() {
		cancel()
		require.NoError(t, <-done)
	})
	// Give the watcher time to register its directories.
	time.Sleep(100 * time.Millisecond)
	return &rebuilds
}

func TestWatcher_RebuildsOnModelChange(t *testing.T) {
	dir := t.TempDir()
	w := New([]string{dir}, WithDebounce(20*time.Millisecond), WithLogger(testutil.NewTestLogger(t)))
	rebuilds := startWatcher(t, w)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "main.yaml"), []byte("shapes: []"), 0o644))

	assert.Eventually(t, func() bool { return rebuilds.Load() >= 1 }, 2*time.Second, 10*time.Millisecond)
}

func TestWatcher_DebouncesBursts(t *testing.T) {
	dir := t.TempDir()
	w := New([]string{dir}, WithDebounce(200*time.Millisecond))
	rebuilds := startWatcher(t, w)

	for i := range 5 {
		name := filepath.Join(dir, "m"+string(rune('a'+i))+".json")
		require.NoError(t, os.WriteFile(name, []byte("{}"), 0o644))
	}

	assert.Eventually(t, func() bool { return rebuilds.Load() == 1 }, 2*time.Second, 10*time.Millisecond)
	time.Sleep(300 * time.Millisecond)
	assert.Equal(t, int32(1), rebuilds.Load())
}

func TestWatcher_IgnoresIrrelevantAndExcluded(t *testing.T) {
	dir := t.TempDir()
	out := filepath.Join(dir, "build")
	require.NoError(t, os.MkdirAll(out, 0o755))

	w := New([]string{dir}, WithDebounce(20*time.Millisecond), WithExclude(out))
	rebuilds := startWatcher(t, w)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(out, "model.json"), []byte("{}"), 0o644))

	time.Sleep(200 * time.Millisecond)
	assert.Equal(t, int32(0), rebuilds.Load())
}

func TestWatcher_WatchesNewDirectories(t *testing.T) {
	dir := t.TempDir()
	w := New([]string{dir}, WithDebounce(20*time.Millisecond))
	rebuilds := startWatcher(t, w)

	nested := filepath.Join(dir, "nested")
	require.NoError(t, os.Mkdir(nested, 0o755))
	time.Sleep(100 * time.Millisecond)
	require.NoError(t, os.WriteFile(filepath.Join(nested, "extra.yaml"), []byte("shapes: []"), 0o644))

	assert.Eventually(t, func() bool { return rebuilds.Load() >= 1 }, 2*time.Second, 10*time.Millisecond)
}

func TestWatcher_MissingPath(t *testing.T) {
	w := New([]string{filepath.Join(t.TempDir(), "missing")})
	err := w.Run(context.Background(), func(context.Context) {})
	assert.ErrorContains(t, err, "failed to watch")
}

func TestWatcher_FilePathWatchesParent(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "leapbuild.yaml")
	require.NoError(t, os.WriteFile(file, []byte("version: \"1.0\""), 0o644))

	w := New([]string{file}, WithDebounce(20*time.Millisecond))
	rebuilds := startWatcher(t, w)

	require.NoError(t, os.WriteFile(file, []byte("version: \"1.0\"\n"), 0o644))
	assert.Eventually(t, func() bool { return rebuilds.Load() >= 1 }, 2*time.Second, 10*time.Millisecond)
}
