// Package remote defines what the transfer layer needs from a flat,
// query-only object store: paginated search, object creation and content
// download. Objects are opaque IDs linked by parent-ID references; there are
// no server-side paths.
package remote

import (
	"context"
	"io"
	"time"
)

// FolderMimeType marks an object as a folder.
const FolderMimeType = "application/vnd.google-apps.folder"

// RootID is the alias every store accepts for the top-level folder.
const RootID = "root"

// Object is a remote file or folder as returned by a search.
type Object struct {
	ID       string
	Name     string
	IsFolder bool

	// Observational fields. Stores fill what they can; IDs-only searches
	// leave them zero.
	MimeType    string
	Size        int64
	MD5         string
	Parents     []string
	Description string
	Properties  map[string]string
	ModifiedAt  time.Time
}

// Metadata describes an object to create.
type Metadata struct {
	Name        string
	Parents     []string
	MimeType    string // "" lets the store infer the type
	Description string
	Extension   string
	Version     string
}

// Page is one page of search results. An empty NextPageToken means the
// result set is exhausted.
type Page struct {
	Objects       []Object
	NextPageToken string
}

// Store is the remote capability. Implementations must be safe for
// concurrent use.
type Store interface {
	// Search returns one page of objects matching q. pageToken is "" for
	// the first page and the previous page's NextPageToken afterwards.
	Search(ctx context.Context, q Query, pageToken string) (Page, error)

	// CreateObject creates an object and returns its ID. content is nil
	// for metadata-only objects such as folders.
	CreateObject(ctx context.Context, meta Metadata, content io.Reader) (string, error)

	// GetContent streams the content of the object with the given ID.
	// The caller closes the returned reader.
	GetContent(ctx context.Context, id string) (io.ReadCloser, error)
}
