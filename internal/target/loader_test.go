package target

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/xkilldash9x/taintscope/internal/config"
)

func defaultTargetConfig() config.TargetConfig {
	return config.TargetConfig{
		Exclude:    []string{"node_modules", ".git"},
		CloneDepth: 1,
	}
}

func writeFile(t *testing.T, dir, name string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte("var x = 1;\n"), 0o644))
	return path
}

func TestResolveDirectoryFiltersAndSorts(t *testing.T) {
	dir := t.TempDir()
	a := writeFile(t, dir, "b/app.js")
	b := writeFile(t, dir, "a/views.py")
	writeFile(t, dir, "a/readme.md")
	writeFile(t, dir, "a/main.go")
	writeFile(t, dir, "node_modules/lib/index.js")
	writeFile(t, dir, ".git/hooks/pre-commit.js")

	l := NewLoader(defaultTargetConfig(), zap.NewNop())
	files, err := l.Resolve(context.Background(), []string{dir})
	require.NoError(t, err)

	assert.Equal(t, []string{b, a}, files)
}

func TestResolveSingleFile(t *testing.T) {
	dir := t.TempDir()
	app := writeFile(t, dir, "app.js")

	l := NewLoader(defaultTargetConfig(), zap.NewNop())
	files, err := l.Resolve(context.Background(), []string{app})
	require.NoError(t, err)
	assert.Equal(t, []string{app}, files)
}

func TestResolveUnsupportedSingleFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "main.go")
	require.NoError(t, os.WriteFile(path, []byte("package main\n"), 0o644))

	l := NewLoader(defaultTargetConfig(), zap.NewNop())
	_, err := l.Resolve(context.Background(), []string{path})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported file type")
}

func TestResolveMissingTarget(t *testing.T) {
	l := NewLoader(defaultTargetConfig(), zap.NewNop())
	_, err := l.Resolve(context.Background(), []string{filepath.Join(t.TempDir(), "gone")})
	require.Error(t, err)
}

func TestResolveDeduplicatesAcrossTargets(t *testing.T) {
	dir := t.TempDir()
	app := writeFile(t, dir, "app.js")

	l := NewLoader(defaultTargetConfig(), zap.NewNop())
	files, err := l.Resolve(context.Background(), []string{dir, app})
	require.NoError(t, err)
	assert.Equal(t, []string{app}, files)
}

func TestResolveCancelledContext(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "app.js")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	l := NewLoader(defaultTargetConfig(), zap.NewNop())
	_, err := l.Resolve(ctx, []string{dir})
	require.Error(t, err)
}

func TestResolveRateLimited(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "a.js")
	writeFile(t, dir, "b.js")
	writeFile(t, dir, "c.js")

	cfg := defaultTargetConfig()
	cfg.FilesPerSecond = 1000 // fast enough for a test, but armed

	l := NewLoader(cfg, zap.NewNop())
	start := time.Now()
	files, err := l.Resolve(context.Background(), []string{dir})
	require.NoError(t, err)
	assert.Len(t, files, 3)
	assert.Less(t, time.Since(start), 5*time.Second)
}

func TestIsRemote(t *testing.T) {
	assert.True(t, isRemote("https://example.com/org/repo.git"))
	assert.True(t, isRemote("git@example.com:org/repo.git"))
	assert.True(t, isRemote("ssh://git@example.com/org/repo.git"))
	assert.False(t, isRemote("./local/dir"))
	assert.False(t, isRemote("/abs/path/app.js"))
}

func TestSanitizeRepoName(t *testing.T) {
	assert.Equal(t, "repo", sanitizeRepoName("https://example.com/org/repo.git"))
	assert.Equal(t, "my-app", sanitizeRepoName("git@example.com:org/my-app"))
	assert.Equal(t, "repo", sanitizeRepoName(""))
}

func TestCloneLocalRepositoryTarget(t *testing.T) {
	// go-git accepts local paths as clone URLs, but the loader treats local
	// paths as directories; only remote schemes reach clone. Verify Cleanup
	// tolerates never having cloned.
	l := NewLoader(defaultTargetConfig(), zap.NewNop())
	l.Cleanup()
	l.Cleanup()
}
