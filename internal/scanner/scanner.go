// Package scanner discovers source files under a root directory.
package scanner

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"iter"
	"log/slog"
	"os"
	"path/filepath"
)

// ErrScan indicates the scan root is missing, not a directory, or unreadable.
var ErrScan = errors.New("scan root")

// errStop aborts a walk when the consumer stops iterating.
var errStop = errors.New("stop")

// Entry is a discovered regular file.
type Entry struct {
	// Path is the root joined with the file's relative path.
	Path string
	// Symlink is true when Path is a followed symbolic link.
	Symlink bool
}

// Options configures traversal.
type Options struct {
	// FollowSymlinks yields symlinked files and descends symlinked directories.
	// When false, symlinks are skipped.
	FollowSymlinks bool
	Logger         *slog.Logger
}

// Scanner walks a directory tree.
// Safe for concurrent use; each Scan call has its own traversal state.
type Scanner struct {
	follow bool
	logger *slog.Logger
}

// New creates a Scanner.
func New(opts Options) *Scanner {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Scanner{follow: opts.FollowSymlinks, logger: logger}
}

// Scan validates root and returns a lazy sequence of the regular files below it.
// The sequence can be ranged over any number of times; each pass walks the
// tree again. A per-entry failure (such as an unreadable subdirectory) is
// yielded as an error paired with the failing path, and the walk continues
// with the next sibling.
func (s *Scanner) Scan(root string) (iter.Seq2[Entry, error], error) {
	if err := checkRoot(root); err != nil {
		return nil, err
	}

	return func(yield func(Entry, error) bool) {
		// A symlinked root is always walked; paths keep the given root.
		dir := root
		visited := make(map[string]bool)
		if real, err := filepath.EvalSymlinks(root); err == nil {
			visited[real] = true
			dir = real
		}
		_ = s.walk(dir, root, visited, yield)
	}, nil
}

func checkRoot(root string) error {
	info, err := os.Stat(root)
	if err != nil {
		return fmt.Errorf("%w %s: %w", ErrScan, root, err)
	}
	if !info.IsDir() {
		return fmt.Errorf("%w %s: not a directory", ErrScan, root)
	}
	f, err := os.Open(root)
	if err != nil {
		return fmt.Errorf("%w %s: %w", ErrScan, root, err)
	}
	defer f.Close()
	if _, err := f.ReadDir(1); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("%w %s: %w", ErrScan, root, err)
	}
	return nil
}

// walk traverses dir, reporting paths under display. display differs from dir
// when dir is the resolved target of a followed symlink.
func (s *Scanner) walk(dir, display string, visited map[string]bool, yield func(Entry, error) bool) error {
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		shown := display
		if rel, relErr := filepath.Rel(dir, path); relErr == nil && rel != "." {
			shown = filepath.Join(display, rel)
		}

		if err != nil {
			if !yield(Entry{Path: shown}, fmt.Errorf("walk %s: %w", shown, err)) {
				return errStop
			}
			if d != nil && d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}

		mode := d.Type()
		switch {
		case mode.IsDir():
			return nil
		case mode.IsRegular():
			if !yield(Entry{Path: shown}, nil) {
				return errStop
			}
			return nil
		case mode&fs.ModeSymlink != 0:
			return s.symlink(path, shown, visited, yield)
		default:
			s.logger.Debug("skipping special file", "path", shown, "mode", mode.String())
			return nil
		}
	})
}

func (s *Scanner) symlink(path, shown string, visited map[string]bool, yield func(Entry, error) bool) error {
	if !s.follow {
		s.logger.Debug("skipping symlink", "path", shown)
		return nil
	}

	real, err := filepath.EvalSymlinks(path)
	if err != nil {
		if !yield(Entry{Path: shown, Symlink: true}, fmt.Errorf("resolve symlink %s: %w", shown, err)) {
			return errStop
		}
		return nil
	}
	info, err := os.Stat(real)
	if err != nil {
		if !yield(Entry{Path: shown, Symlink: true}, fmt.Errorf("stat symlink target %s: %w", shown, err)) {
			return errStop
		}
		return nil
	}

	switch {
	case info.Mode().IsRegular():
		if !yield(Entry{Path: shown, Symlink: true}, nil) {
			return errStop
		}
	case info.IsDir():
		if visited[real] {
			s.logger.Debug("skipping symlink cycle", "path", shown, "target", real)
			return nil
		}
		visited[real] = true
		if err := s.walk(real, shown, visited, yield); err != nil {
			return err
		}
	default:
		s.logger.Debug("skipping symlink to special file", "path", shown)
	}
	return nil
}
