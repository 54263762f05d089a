// Package mimetable maps file extensions to content types using an ordered
// rule table. The table is loaded once per session and never mutated.
package mimetable

import (
	"bufio"
	_ "embed"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/tonimelisma/gdrive-go/internal/vpath"
)

// DefaultDelimiter separates extension and content type in a table line.
const DefaultDelimiter = "#"

// ErrInvalidFileName is returned by Classify for names without an extension.
var ErrInvalidFileName = errors.New("mimetable: file name has no extension")

//go:embed default_mime_types.txt
var defaultTable string

// Rule maps one extension (including its leading ".") to a content type.
type Rule struct {
	Extension   string
	ContentType string
}

// ParseError reports a malformed table line.
type ParseError struct {
	Line int
	Text string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("mimetable: line %d: malformed rule %q", e.Line, e.Text)
}

// Table is an ordered list of rules. The first rule whose extension equals
// the file's extension wins. A Table is safe for concurrent readers.
type Table struct {
	rules []Rule
}

// Parse reads one "ext<delim>type" rule per line. Blank lines are skipped.
func Parse(r io.Reader, delim string) (*Table, error) {
	if delim == "" {
		delim = DefaultDelimiter
	}

	t := &Table{}
	sc := bufio.NewScanner(r)
	line := 0

	for sc.Scan() {
		line++

		text := strings.TrimSpace(sc.Text())
		if text == "" {
			continue
		}

		ext, ct, ok := strings.Cut(text, delim)
		ext, ct = strings.TrimSpace(ext), strings.TrimSpace(ct)

		if !ok || ext == "" || ct == "" {
			return nil, &ParseError{Line: line, Text: text}
		}

		t.rules = append(t.rules, Rule{Extension: ext, ContentType: ct})
	}

	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("mimetable: reading table: %w", err)
	}

	return t, nil
}

// Load parses the table file at path.
func Load(path, delim string) (*Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("mimetable: opening %s: %w", path, err)
	}
	defer f.Close()

	t, err := Parse(f, delim)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	return t, nil
}

var defaultOnce = sync.OnceValue(func() *Table {
	t, err := Parse(strings.NewReader(defaultTable), DefaultDelimiter)
	if err != nil {
		panic(fmt.Sprintf("mimetable: built-in table: %v", err))
	}

	return t
})

// Default returns the built-in table.
func Default() *Table {
	return defaultOnce()
}

// Classify returns the content type for fileName's extension, or "" when no
// rule matches. Names without an extension fail with ErrInvalidFileName.
func (t *Table) Classify(fileName string) (string, error) {
	ext, ok := vpath.Ext(fileName)
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrInvalidFileName, fileName)
	}

	return t.Lookup(ext), nil
}

// Lookup returns the content type for an extension, or "".
func (t *Table) Lookup(ext string) string {
	if t == nil {
		return ""
	}

	for _, r := range t.rules {
		if r.Extension == ext {
			return r.ContentType
		}
	}

	return ""
}

// Rules returns a copy of the rules in declaration order.
func (t *Table) Rules() []Rule {
	return append([]Rule(nil), t.rules...)
}

// Len returns the number of rules.
func (t *Table) Len() int {
	return len(t.rules)
}
