package provenance

import (
	"context"
	"errors"
	"os/exec"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestGitFailsOutsideRepository(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("GIT_CEILING_DIRECTORIES", filepath.Dir(dir))

	_, err := NewGit(dir).Provenance(context.Background())
	require.ErrorIs(t, err, ErrProvenance)
}

func TestGitReadsRevisionAndAuthor(t *testing.T) {
	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git not installed")
	}

	dir := t.TempDir()
	t.Setenv("GIT_CEILING_DIRECTORIES", filepath.Dir(dir))
	gitCmd := func(args ...string) {
		cmd := exec.Command("git", args...)
		cmd.Dir = dir
		out, err := cmd.CombinedOutput()
		require.NoError(t, err, string(out))
	}
	gitCmd("init", "-q")
	gitCmd("config", "user.name", "홍길동")
	gitCmd("config", "user.email", "hong@example.com")
	gitCmd("-c", "commit.gpgsign=false", "commit", "-q", "--allow-empty", "-m", "init")

	fixed := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	g := NewGit(dir)
	g.Now = func() time.Time { return fixed }

	info, err := g.Provenance(context.Background())
	require.NoError(t, err)
	require.Equal(t, "홍길동", info.Author)
	require.Equal(t, fixed, info.BuildDate)
	require.Regexp(t, `^[0-9a-f]{4,}$`, info.Commit)
}

func TestStatic(t *testing.T) {
	info, err := Static{Info: Info{Commit: "abc", Author: "me"}}.Provenance(context.Background())
	require.NoError(t, err)
	require.Equal(t, "abc", info.Commit)
	require.False(t, info.BuildDate.IsZero())
}

type failingProvider struct{}

func (failingProvider) Provenance(context.Context) (Info, error) {
	return Info{}, ErrProvenance
}

func TestOverride(t *testing.T) {
	info, err := Override{Provider: failingProvider{}, Commit: "c0ffee", Author: "ci"}.Provenance(context.Background())
	require.NoError(t, err)
	require.Equal(t, "c0ffee", info.Commit)
	require.Equal(t, "ci", info.Author)

	_, err = Override{Provider: failingProvider{}, Author: "ci"}.Provenance(context.Background())
	require.True(t, errors.Is(err, ErrProvenance))

	info, err = Override{Provider: Static{Info: Info{Commit: "abc", Author: "git"}}, Author: "ci"}.Provenance(context.Background())
	require.NoError(t, err)
	require.Equal(t, "abc", info.Commit)
	require.Equal(t, "ci", info.Author)
}
