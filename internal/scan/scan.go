// Package scan expands command-line arguments into the list of files an
// upload batch should consider.
package scan

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

var supportedExtensions = map[string]struct{}{
	".mp3":  {},
	".m4a":  {},
	".m4b":  {},
	".aac":  {},
	".flac": {},
	".ogg":  {},
	".oga":  {},
}

// Options controls directory expansion.
type Options struct {
	// Recursive descends into subdirectories of named directories.
	Recursive bool
	// IncludeHidden keeps dot-prefixed files and directories found while walking.
	IncludeHidden bool
}

// DefaultOptions walks recursively and skips hidden entries.
func DefaultOptions() Options {
	return Options{Recursive: true}
}

// Skipped is a walk entry that could not be inspected.
type Skipped struct {
	Path   string
	Reason string
}

// Result is the expanded, de-duplicated, sorted file list.
type Result struct {
	Files   []string
	Skipped []Skipped
}

// Supported reports whether path has an extension the uploader understands.
func Supported(path string) bool {
	_, ok := supportedExtensions[strings.ToLower(filepath.Ext(path))]
	return ok
}

// Collect expands paths. Named files are kept whatever their extension so the
// batch can report why they were not uploaded; directories contribute only
// supported audio files. Paths that do not exist are kept as named.
func Collect(paths []string, opts Options) (Result, error) {
	seen := make(map[string]struct{})
	var result Result
	add := func(p string) {
		if _, ok := seen[p]; ok {
			return
		}
		seen[p] = struct{}{}
		result.Files = append(result.Files, p)
	}

	for _, raw := range paths {
		raw = strings.TrimSpace(raw)
		if raw == "" {
			continue
		}
		abs, err := filepath.Abs(raw)
		if err != nil {
			return Result{}, fmt.Errorf("resolve %q: %w", raw, err)
		}
		info, err := os.Stat(abs)
		if err != nil || !info.IsDir() {
			add(abs)
			continue
		}
		if err := walk(abs, opts, add, &result); err != nil {
			return Result{}, err
		}
	}

	sort.Strings(result.Files)
	return result, nil
}

func walk(root string, opts Options, add func(string), result *Result) error {
	err := filepath.WalkDir(root, func(path string, entry fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			result.Skipped = append(result.Skipped, Skipped{Path: path, Reason: walkErr.Error()})
			if entry != nil && entry.IsDir() {
				return fs.SkipDir
			}
			return nil
		}
		if path != root && !opts.IncludeHidden && strings.HasPrefix(entry.Name(), ".") {
			if entry.IsDir() {
				return fs.SkipDir
			}
			return nil
		}
		if entry.IsDir() {
			if path != root && !opts.Recursive {
				return fs.SkipDir
			}
			return nil
		}
		if !entry.Type().IsRegular() || !Supported(path) {
			return nil
		}
		add(path)
		return nil
	})
	if err != nil && !errors.Is(err, fs.SkipDir) {
		return fmt.Errorf("walk %s: %w", root, err)
	}
	return nil
}
