// Package vpath parses the slash-separated virtual paths users give for
// remote locations and extracts file name extensions.
package vpath

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// Separator is the virtual path separator regardless of host OS.
const Separator = "/"

// ErrInvalidPath is returned for paths containing "." or ".." components.
var ErrInvalidPath = errors.New("vpath: invalid path")

// Path is a parsed virtual path. Empty components are dropped during parsing,
// so "//a//b/" and "a/b" produce the same components. Components are held in
// Unicode NFC so a name typed in decomposed form matches the stored one.
type Path struct {
	components []string
	rooted     bool
	trailing   bool
}

// Parse splits raw into components. An empty raw string yields a Path with
// no components, which callers treat as the top level.
func Parse(raw string) (Path, error) {
	p := Path{
		rooted:   strings.HasPrefix(raw, Separator),
		trailing: strings.HasSuffix(raw, Separator),
	}

	for _, c := range strings.Split(raw, Separator) {
		switch c {
		case "":
			continue
		case ".", "..":
			return Path{}, fmt.Errorf("%w: %q contains relative component %q", ErrInvalidPath, raw, c)
		}

		p.components = append(p.components, Normalize(c))
	}

	return p, nil
}

// MustParse is Parse for literals known to be valid.
func MustParse(raw string) Path {
	p, err := Parse(raw)
	if err != nil {
		panic(err)
	}

	return p
}

// Components returns a copy of the path components.
func (p Path) Components() []string {
	return append([]string(nil), p.components...)
}

// Len returns the number of components.
func (p Path) Len() int { return len(p.components) }

// IsEmpty reports whether the path has no components.
func (p Path) IsEmpty() bool { return len(p.components) == 0 }

// IsDir reports whether the raw path named a directory: empty, or ending in
// a separator.
func (p Path) IsDir() bool { return p.IsEmpty() || p.trailing }

// Leaf returns the last component, or "" for an empty path.
func (p Path) Leaf() string {
	if len(p.components) == 0 {
		return ""
	}

	return p.components[len(p.components)-1]
}

// Dir returns every component except the leaf.
func (p Path) Dir() []string {
	if len(p.components) <= 1 {
		return nil
	}

	return append([]string(nil), p.components[:len(p.components)-1]...)
}

// Join returns a new path with name appended as the leaf. The receiver is
// not modified.
func (p Path) Join(name string) Path {
	out := Path{rooted: p.rooted}
	out.components = make([]string, 0, len(p.components)+1)
	out.components = append(out.components, p.components...)
	out.components = append(out.components, Normalize(name))

	return out
}

// String renders the canonical form: rooted paths keep their leading slash,
// trailing separators and empty components are dropped.
func (p Path) String() string {
	s := strings.Join(p.components, Separator)
	if p.rooted {
		return Separator + s
	}

	return s
}

// Normalize returns name in Unicode NFC, the form every remote name is
// created and searched in.
func Normalize(name string) string {
	return norm.NFC.String(name)
}

// Ext returns the extension of name's base component: the substring starting
// at the last "." (so "a.tar.gz" yields ".gz" and ".bashrc" yields ".bashrc").
// ok is false when the base name contains no ".".
func Ext(name string) (ext string, ok bool) {
	base := Base(name)

	i := strings.LastIndex(base, ".")
	if i < 0 {
		return "", false
	}

	return base[i:], true
}

// Base returns the last element of a local or virtual path.
func Base(name string) string {
	name = filepath.ToSlash(name)
	name = strings.TrimRight(name, Separator)

	if i := strings.LastIndex(name, Separator); i >= 0 {
		return name[i+1:]
	}

	return name
}
