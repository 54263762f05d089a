package remote

import (
	"fmt"
	"strings"
)

// Query selects objects. Zero-valued fields impose no constraint; trashed
// objects are always excluded.
type Query struct {
	Name         string // exact name match
	NameContains string // substring match
	FoldersOnly  bool
	ParentID     string // direct parent; RootID anchors to the top level
	IDsOnly      bool   // only Object.ID is needed by the caller
	PageSize     int    // 0 uses the store default
}

// String renders q in Drive query syntax.
func (q Query) String() string {
	clauses := make([]string, 0, 5) //nolint:mnd // one slot per field plus trashed

	if q.Name != "" {
		clauses = append(clauses, fmt.Sprintf("name = '%s'", EscapeQuery(q.Name)))
	}

	if q.NameContains != "" {
		clauses = append(clauses, fmt.Sprintf("name contains '%s'", EscapeQuery(q.NameContains)))
	}

	if q.FoldersOnly {
		clauses = append(clauses, fmt.Sprintf("mimeType = '%s'", FolderMimeType))
	}

	if q.ParentID != "" {
		clauses = append(clauses, fmt.Sprintf("'%s' in parents", EscapeQuery(q.ParentID)))
	}

	clauses = append(clauses, "trashed = false")

	return strings.Join(clauses, " and ")
}

// EscapeQuery escapes s for use inside a single-quoted query literal.
func EscapeQuery(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, "'", `\'`)

	return s
}
