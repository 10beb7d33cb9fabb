// Package target materializes scan targets into flat lists of scannable
// files. A target is a file, a directory, or a remote git URL; remote
// targets are shallow-cloned into a scratch directory first.
package target

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	git "github.com/go-git/go-git/v5"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/xkilldash9x/taintscope/internal/config"
	"github.com/xkilldash9x/taintscope/internal/source"
)

// Loader resolves targets into file lists.
type Loader struct {
	cfg     config.TargetConfig
	logger  *zap.Logger
	limiter *rate.Limiter

	exts    map[string]bool
	exclude map[string]bool

	// cloneDir receives shallow clones of remote targets; the caller owns
	// its lifetime via Cleanup.
	cloneDir string
}

// NewLoader builds a loader from configuration. The walk rate limiter is
// only armed when files_per_second is positive.
func NewLoader(cfg config.TargetConfig, logger *zap.Logger) *Loader {
	exts := make(map[string]bool)
	for _, e := range source.SupportedExtensions() {
		exts[e] = true
	}
	exclude := make(map[string]bool)
	for _, d := range cfg.Exclude {
		exclude[d] = true
	}

	var limiter *rate.Limiter
	if cfg.FilesPerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.FilesPerSecond), 1)
	}

	return &Loader{
		cfg:     cfg,
		logger:  logger.Named("target_loader"),
		limiter: limiter,
		exts:    exts,
		exclude: exclude,
	}
}

// Resolve expands every target into scannable files and returns the merged,
// sorted, deduplicated list.
func (l *Loader) Resolve(ctx context.Context, targets []string) ([]string, error) {
	seen := make(map[string]bool)
	var files []string

	for _, target := range targets {
		resolved, err := l.resolveOne(ctx, target)
		if err != nil {
			return nil, err
		}
		for _, f := range resolved {
			if !seen[f] {
				seen[f] = true
				files = append(files, f)
			}
		}
	}

	sort.Strings(files)
	l.logger.Info("Targets resolved.",
		zap.Int("targets", len(targets)),
		zap.Int("files", len(files)))
	return files, nil
}

func (l *Loader) resolveOne(ctx context.Context, target string) ([]string, error) {
	if isRemote(target) {
		dir, err := l.clone(ctx, target)
		if err != nil {
			return nil, err
		}
		return l.walk(ctx, dir)
	}

	info, err := os.Stat(target)
	if err != nil {
		return nil, fmt.Errorf("target %s: %w", target, err)
	}
	if info.IsDir() {
		return l.walk(ctx, target)
	}
	if !l.exts[strings.ToLower(filepath.Ext(target))] {
		return nil, fmt.Errorf("target %s: unsupported file type", target)
	}
	return []string{target}, nil
}

// isRemote reports whether the target must be cloned rather than walked.
func isRemote(target string) bool {
	return strings.HasPrefix(target, "http://") ||
		strings.HasPrefix(target, "https://") ||
		strings.HasPrefix(target, "git@") ||
		strings.HasPrefix(target, "ssh://")
}

// clone shallow-clones a remote repository into the loader's scratch space.
func (l *Loader) clone(ctx context.Context, url string) (string, error) {
	if l.cloneDir == "" {
		dir, err := os.MkdirTemp("", "taintscope-clone-*")
		if err != nil {
			return "", fmt.Errorf("create clone dir: %w", err)
		}
		l.cloneDir = dir
	}

	dest := filepath.Join(l.cloneDir, sanitizeRepoName(url))
	l.logger.Info("Cloning remote target.",
		zap.String("url", url),
		zap.String("dest", dest),
		zap.Int("depth", l.cfg.CloneDepth))

	_, err := git.PlainCloneContext(ctx, dest, false, &git.CloneOptions{
		URL:   url,
		Depth: l.cfg.CloneDepth,
	})
	if err != nil && err != git.ErrRepositoryAlreadyExists {
		return "", fmt.Errorf("clone %s: %w", url, err)
	}
	return dest, nil
}

// sanitizeRepoName flattens a clone URL into a directory name.
func sanitizeRepoName(url string) string {
	name := strings.TrimSuffix(url, ".git")
	if i := strings.LastIndexByte(name, '/'); i >= 0 {
		name = name[i+1:]
	}
	name = strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_', r == '.':
			return r
		default:
			return '_'
		}
	}, name)
	if name == "" {
		name = "repo"
	}
	return name
}

// walk collects every supported file under root, skipping excluded
// directories and honoring the configured rate limit.
func (l *Loader) walk(ctx context.Context, root string) ([]string, error) {
	var files []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if l.exclude[d.Name()] {
				return filepath.SkipDir
			}
			return nil
		}
		if !l.exts[strings.ToLower(filepath.Ext(path))] {
			return nil
		}
		if l.limiter != nil {
			if err := l.limiter.Wait(ctx); err != nil {
				return err
			}
		} else if err := ctx.Err(); err != nil {
			return err
		}
		files = append(files, path)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk %s: %w", root, err)
	}
	return files, nil
}

// Cleanup removes any scratch clone directories created by Resolve.
func (l *Loader) Cleanup() {
	if l.cloneDir == "" {
		return
	}
	if err := os.RemoveAll(l.cloneDir); err != nil {
		l.logger.Warn("Failed to remove clone scratch dir.",
			zap.String("dir", l.cloneDir), zap.Error(err))
	}
	l.cloneDir = ""
}
