package watcher

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func waitFor(t *testing.T, ch <-chan string, want string) {
	t.Helper()
	timeout := time.After(5 * time.Second)
	for {
		select {
		case p, ok := <-ch:
			require.True(t, ok, "watcher closed before %s", want)
			if p == want {
				return
			}
		case <-timeout:
			t.Fatalf("no event for %s", want)
		}
	}
}

func TestWatcherReportsNestedChanges(t *testing.T) {
	dir := t.TempDir()
	nested := filepath.Join(dir, "js")
	require.NoError(t, os.MkdirAll(nested, 0755))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ch, err := StartWatcher(ctx, dir)
	require.NoError(t, err)

	file := filepath.Join(nested, "app.js")
	require.NoError(t, os.WriteFile(file, []byte("console.log(1)"), 0644))
	waitFor(t, ch, file)
}

func TestWatcherFollowsNewFolders(t *testing.T) {
	dir := t.TempDir()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ch, err := StartWatcher(ctx, dir)
	require.NoError(t, err)

	sub := filepath.Join(dir, "scss")
	require.NoError(t, os.Mkdir(sub, 0755))
	waitFor(t, ch, sub)

	// the folder is registered before its create event is delivered
	file := filepath.Join(sub, "order.scss")
	require.NoError(t, os.WriteFile(file, []byte("a{}"), 0644))
	waitFor(t, ch, file)
}

func TestWatcherClosesOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	ch, err := StartWatcher(ctx, t.TempDir())
	require.NoError(t, err)

	cancel()
	select {
	case _, ok := <-ch:
		require.False(t, ok)
	case <-time.After(5 * time.Second):
		t.Fatal("channel not closed")
	}
}

func TestWatcherMissingFolder(t *testing.T) {
	_, err := StartWatcher(context.Background(), filepath.Join(t.TempDir(), "missing"))
	require.Error(t, err)
}

func TestWatcherReportsExtraFiles(t *testing.T) {
	root := t.TempDir()
	src := filepath.Join(root, "src")
	require.NoError(t, os.MkdirAll(src, 0755))
	favicon := filepath.Join(root, "favicon.ico")
	env := filepath.Join(root, ".env")
	require.NoError(t, os.WriteFile(favicon, []byte("ico"), 0644))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ch, err := StartWatcher(ctx, src, favicon, env)
	require.NoError(t, err)

	// siblings of the extra files are not reported
	require.NoError(t, os.WriteFile(filepath.Join(root, "README.md"), []byte("readme"), 0644))

	require.NoError(t, os.WriteFile(favicon, []byte("new ico"), 0644))
	select {
	case p := <-ch:
		require.Equal(t, favicon, p)
	case <-time.After(5 * time.Second):
		t.Fatal("no event for favicon")
	}

	// dot files are skipped in the tree but not when asked for
	require.NoError(t, os.WriteFile(env, []byte("API_URL=http://localhost:8081\n"), 0644))
	waitFor(t, ch, env)
}
