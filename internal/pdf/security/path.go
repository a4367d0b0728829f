// Package security confines the files the report service reads and writes
// to a configured directory tree.
package security

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

var (
	ErrEmptyPath     = errors.New("path cannot be empty")
	ErrOutsideRoot   = errors.New("path is outside the configured directory")
	ErrNotRegular    = errors.New("path is not a regular file")
	ErrWrongFileType = errors.New("unsupported file extension")
)

// PathValidator resolves user supplied paths against a root directory and
// rejects anything that escapes it, including through symlinks.
type PathValidator struct {
	root string
}

// NewPathValidator creates a validator rooted at dir. The directory does not
// have to exist yet.
func NewPathValidator(dir string) (*PathValidator, error) {
	if dir == "" {
		return nil, fmt.Errorf("configured directory cannot be empty")
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve configured directory: %w", err)
	}
	return &PathValidator{root: filepath.Clean(abs)}, nil
}

// Root returns the absolute configured directory.
func (v *PathValidator) Root() string {
	return v.root
}

// Resolve returns the absolute form of path. Relative paths are taken from the
// root directory.
func (v *PathValidator) Resolve(path string) (string, error) {
	path = strings.ReplaceAll(path, "\x00", "")
	if strings.TrimSpace(path) == "" {
		return "", ErrEmptyPath
	}

	if !filepath.IsAbs(path) {
		path = filepath.Join(v.root, path)
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("failed to resolve path: %w", err)
	}

	if !v.Contains(abs) {
		return "", fmt.Errorf("%w: %s", ErrOutsideRoot, path)
	}
	return abs, nil
}

// Contains reports whether path lies inside the root, comparing both the
// lexical path and, where it exists, its symlink-resolved form.
func (v *PathValidator) Contains(path string) bool {
	clean := filepath.Clean(path)
	if !within(clean, v.root) {
		return false
	}

	realRoot := v.root
	if resolved, err := filepath.EvalSymlinks(v.root); err == nil {
		realRoot = resolved
	}

	// Resolve the longest existing prefix so that new files below a
	// symlinked directory are checked too.
	existing, rest := clean, ""
	for {
		if resolved, err := filepath.EvalSymlinks(existing); err == nil {
			return within(filepath.Join(resolved, rest), realRoot)
		}
		parent := filepath.Dir(existing)
		if parent == existing {
			return true
		}
		rest = filepath.Join(filepath.Base(existing), rest)
		existing = parent
	}
}

func within(path, dir string) bool {
	if path == dir {
		return true
	}
	rel, err := filepath.Rel(dir, path)
	if err != nil {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}

// ResolveFile resolves an existing regular file. When extensions are given the
// file must carry one of them (compared case-insensitively, with the dot).
func (v *PathValidator) ResolveFile(path string, extensions ...string) (string, error) {
	abs, err := v.Resolve(path)
	if err != nil {
		return "", err
	}

	if len(extensions) > 0 && !hasExtension(abs, extensions) {
		return "", fmt.Errorf("%w: %s (want %s)", ErrWrongFileType, path, strings.Join(extensions, ", "))
	}

	info, err := os.Stat(abs)
	if os.IsNotExist(err) {
		return "", fmt.Errorf("file does not exist: %s", path)
	}
	if err != nil {
		return "", fmt.Errorf("cannot access file: %w", err)
	}
	if !info.Mode().IsRegular() {
		return "", fmt.Errorf("%w: %s", ErrNotRegular, path)
	}
	return abs, nil
}

// ResolveOutput resolves a file to be written and creates its parent
// directories.
func (v *PathValidator) ResolveOutput(path string, extensions ...string) (string, error) {
	abs, err := v.Resolve(path)
	if err != nil {
		return "", err
	}
	if abs == v.root {
		return "", fmt.Errorf("%w: %s", ErrNotRegular, path)
	}
	if len(extensions) > 0 && !hasExtension(abs, extensions) {
		return "", fmt.Errorf("%w: %s (want %s)", ErrWrongFileType, path, strings.Join(extensions, ", "))
	}

	if info, err := os.Stat(abs); err == nil && info.IsDir() {
		return "", fmt.Errorf("%w: %s is a directory", ErrNotRegular, path)
	}
	if err := os.MkdirAll(filepath.Dir(abs), 0o755); err != nil {
		return "", fmt.Errorf("failed to create output directory: %w", err)
	}
	return abs, nil
}

func hasExtension(path string, extensions []string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	for _, e := range extensions {
		if ext == strings.ToLower(e) {
			return true
		}
	}
	return false
}
