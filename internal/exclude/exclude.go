// Package exclude holds the set of file extensions that may not be
// transferred.
package exclude

import (
	"errors"
	"fmt"
	"sync"

	"github.com/tonimelisma/gdrive-go/internal/vpath"
)

// Sentinel errors. Use errors.Is to check.
var (
	ErrDuplicateExclusion   = errors.New("exclude: extension already excluded")
	ErrEmptyExtension       = errors.New("exclude: empty extension")
	ErrUnsupportedFile      = errors.New("exclude: unsupported file: name has no extension")
	ErrUnsupportedExtension = errors.New("exclude: unsupported file extension")
)

// Filter is an append-only set of excluded extensions. Extensions are
// compared literally, including the leading ".". Safe for concurrent use.
type Filter struct {
	mu   sync.RWMutex
	exts []string
	set  map[string]struct{}
}

// New returns a filter seeded with exts. A repeated extension is an error.
func New(exts ...string) (*Filter, error) {
	f := &Filter{set: make(map[string]struct{}, len(exts))}

	for _, ext := range exts {
		if err := f.Exclude(ext); err != nil {
			return nil, err
		}
	}

	return f, nil
}

// Exclude adds ext to the set. Adding an extension twice fails with
// ErrDuplicateExclusion and leaves the set unchanged.
func (f *Filter) Exclude(ext string) error {
	if ext == "" {
		return ErrEmptyExtension
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	if _, ok := f.set[ext]; ok {
		return fmt.Errorf("%w: %q", ErrDuplicateExclusion, ext)
	}

	f.set[ext] = struct{}{}
	f.exts = append(f.exts, ext)

	return nil
}

// IsExcluded reports whether ext is in the set.
func (f *Filter) IsExcluded(ext string) bool {
	f.mu.RLock()
	defer f.mu.RUnlock()

	_, ok := f.set[ext]

	return ok
}

// CheckAllowed gates a transfer of path. Paths whose base name has no
// extension fail with ErrUnsupportedFile; excluded extensions fail with
// ErrUnsupportedExtension.
func (f *Filter) CheckAllowed(path string) error {
	ext, ok := vpath.Ext(path)
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnsupportedFile, path)
	}

	if f.IsExcluded(ext) {
		return fmt.Errorf("%w %q: %s", ErrUnsupportedExtension, ext, path)
	}

	return nil
}

// Extensions returns the excluded extensions in the order they were added.
func (f *Filter) Extensions() []string {
	f.mu.RLock()
	defer f.mu.RUnlock()

	return append([]string(nil), f.exts...)
}
