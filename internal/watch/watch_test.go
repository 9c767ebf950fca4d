package watch

import (
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWatcherSeesWrites(t *testing.T) {
	dir := t.TempDir()

	var (
		mu    sync.Mutex
		paths []string
	)
	w, err := New(dir, func(path string) {
		mu.Lock()
		paths = append(paths, path)
		mu.Unlock()
	})
	require.NoError(t, err)
	require.NoError(t, w.Start())
	defer w.Stop()

	target := filepath.Join(dir, "rules.ir")
	require.NoError(t, os.WriteFile(target, []byte("a require b\n"), 0o644))

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(paths) > 0
	}, 5*time.Second, 20*time.Millisecond)

	mu.Lock()
	assert.Equal(t, target, paths[0])
	mu.Unlock()
}

func TestWatcherIgnoresUnrelatedExtensions(t *testing.T) {
	dir := t.TempDir()

	var (
		mu    sync.Mutex
		calls int
	)
	w, err := New(dir, func(string) {
		mu.Lock()
		calls++
		mu.Unlock()
	})
	require.NoError(t, err)
	require.NoError(t, w.Start())
	defer w.Stop()

	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0o644))
	time.Sleep(200 * time.Millisecond)

	mu.Lock()
	assert.Zero(t, calls)
	mu.Unlock()
}

func TestWatcherDebouncesBursts(t *testing.T) {
	dir := t.TempDir()

	var (
		mu    sync.Mutex
		calls int
	)
	w, err := New(dir, func(string) {
		mu.Lock()
		calls++
		mu.Unlock()
	})
	require.NoError(t, err)
	require.NoError(t, w.Start())
	defer w.Stop()

	target := filepath.Join(dir, "rules.ir")
	for i := 0; i < 5; i++ {
		require.NoError(t, os.WriteFile(target, []byte("a require b\n"), 0o644))
	}

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return calls >= 1
	}, 5*time.Second, 20*time.Millisecond)

	time.Sleep(200 * time.Millisecond)
	mu.Lock()
	assert.LessOrEqual(t, calls, 2, "burst writes should collapse")
	mu.Unlock()
}
