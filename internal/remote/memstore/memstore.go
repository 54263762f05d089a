// Package memstore is an in-memory remote.Store. It backs the "memory"
// backend and serves as the fake remote in tests. Objects are returned in
// creation order, which makes first-match behavior deterministic.
package memstore

import (
	"bytes"
	"context"
	"crypto/md5" //nolint:gosec // Drive reports MD5 checksums; mirrored here
	"encoding/hex"
	"fmt"
	"io"
	"maps"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/tonimelisma/gdrive-go/internal/remote"
)

const defaultPageSize = 100

// SearchHook runs before every search. A non-nil error fails the search.
// call counts searches from 1.
type SearchHook func(q remote.Query, pageToken string, call int) error

// Store is an in-memory remote.Store safe for concurrent use.
type Store struct {
	mu       sync.Mutex
	objects  []*entry
	byID     map[string]*entry
	nextID   int
	pageSize int
	hook     SearchHook
	now      func() time.Time

	searches atomic.Int64
	creates  atomic.Int64
	gets     atomic.Int64
}

type entry struct {
	obj     remote.Object
	content []byte
}

// Option configures a Store.
type Option func(*Store)

// WithPageSize sets the default page size.
func WithPageSize(n int) Option {
	return func(s *Store) { s.pageSize = n }
}

// WithSearchHook installs a hook run before every search.
func WithSearchHook(h SearchHook) Option {
	return func(s *Store) { s.hook = h }
}

// New returns an empty store.
func New(opts ...Option) *Store {
	s := &Store{
		byID:     make(map[string]*entry),
		pageSize: defaultPageSize,
		now:      time.Now,
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Search implements remote.Store.
func (s *Store) Search(ctx context.Context, q remote.Query, pageToken string) (remote.Page, error) {
	call := int(s.searches.Add(1))

	if err := ctx.Err(); err != nil {
		return remote.Page{}, &remote.Error{Op: "search", Err: err}
	}

	s.mu.Lock()
	hook := s.hook
	s.mu.Unlock()

	if hook != nil {
		if err := hook(q, pageToken, call); err != nil {
			return remote.Page{}, err
		}
	}

	offset := 0
	if pageToken != "" {
		n, err := strconv.Atoi(pageToken)
		if err != nil || n < 0 {
			return remote.Page{}, remote.NewStatusError("search", http.StatusBadRequest, "invalid page token")
		}

		offset = n
	}

	size := s.pageSize
	if q.PageSize > 0 {
		size = q.PageSize
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var hits []remote.Object

	for _, e := range s.objects {
		if matches(q, e.obj) {
			hits = append(hits, project(q, e.obj))
		}
	}

	if offset >= len(hits) {
		return remote.Page{}, nil
	}

	end := min(offset+size, len(hits))
	page := remote.Page{Objects: hits[offset:end]}

	if end < len(hits) {
		page.NextPageToken = strconv.Itoa(end)
	}

	return page, nil
}

// CreateObject implements remote.Store.
func (s *Store) CreateObject(ctx context.Context, meta remote.Metadata, content io.Reader) (string, error) {
	s.creates.Add(1)

	if err := ctx.Err(); err != nil {
		return "", &remote.Error{Op: "create", Err: err}
	}

	var data []byte

	if content != nil {
		var err error

		data, err = io.ReadAll(content)
		if err != nil {
			return "", &remote.Error{Op: "create", Err: fmt.Errorf("reading content: %w", err)}
		}
	}

	return s.add(meta, data), nil
}

// GetContent implements remote.Store.
func (s *Store) GetContent(ctx context.Context, id string) (io.ReadCloser, error) {
	s.gets.Add(1)

	if err := ctx.Err(); err != nil {
		return nil, &remote.Error{Op: "get", Err: err}
	}

	s.mu.Lock()
	e, ok := s.byID[id]
	s.mu.Unlock()

	if !ok {
		return nil, remote.NewStatusError("get", http.StatusNotFound, "file not found: "+id)
	}

	if e.obj.IsFolder {
		return nil, remote.NewStatusError("get", http.StatusForbidden, "folders have no content")
	}

	return io.NopCloser(bytes.NewReader(e.content)), nil
}

// AddFolder seeds a folder under parent ("" for the top level) and returns
// its ID.
func (s *Store) AddFolder(name, parent string) string {
	return s.add(remote.Metadata{Name: name, Parents: parents(parent), MimeType: remote.FolderMimeType}, nil)
}

// AddFile seeds a file under parent and returns its ID.
func (s *Store) AddFile(name, parent string, content []byte) string {
	return s.add(remote.Metadata{Name: name, Parents: parents(parent)}, content)
}

// Get returns a copy of the object with the given ID.
func (s *Store) Get(id string) (remote.Object, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.byID[id]
	if !ok {
		return remote.Object{}, false
	}

	return clone(e.obj), true
}

// Content returns a copy of the stored bytes for id.
func (s *Store) Content(id string) ([]byte, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.byID[id]
	if !ok {
		return nil, false
	}

	return bytes.Clone(e.content), true
}

// Children lists the objects whose parents include parent, in creation order.
func (s *Store) Children(parent string) []remote.Object {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []remote.Object

	for _, e := range s.objects {
		for _, p := range e.obj.Parents {
			if p == parent {
				out = append(out, clone(e.obj))
				break
			}
		}
	}

	return out
}

// Len returns the number of stored objects.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return len(s.objects)
}

// SearchCalls returns the number of Search calls so far.
func (s *Store) SearchCalls() int { return int(s.searches.Load()) }

// CreateCalls returns the number of CreateObject calls so far.
func (s *Store) CreateCalls() int { return int(s.creates.Load()) }

// GetCalls returns the number of GetContent calls so far.
func (s *Store) GetCalls() int { return int(s.gets.Load()) }

// Calls returns the total number of remote calls so far.
func (s *Store) Calls() int { return s.SearchCalls() + s.CreateCalls() + s.GetCalls() }

func (s *Store) add(meta remote.Metadata, data []byte) string {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextID++
	id := fmt.Sprintf("mem-%04d", s.nextID)

	ps := meta.Parents
	if len(ps) == 0 {
		ps = []string{remote.RootID}
	}

	obj := remote.Object{
		ID:          id,
		Name:        meta.Name,
		IsFolder:    meta.MimeType == remote.FolderMimeType,
		MimeType:    meta.MimeType,
		Parents:     append([]string(nil), ps...),
		Description: meta.Description,
		ModifiedAt:  s.now(),
	}

	if !obj.IsFolder {
		sum := md5.Sum(data) //nolint:gosec // checksum, not security
		obj.MD5 = hex.EncodeToString(sum[:])
		obj.Size = int64(len(data))
	}

	if meta.Extension != "" || meta.Version != "" {
		obj.Properties = make(map[string]string, 2) //nolint:mnd // extension and version
		if meta.Extension != "" {
			obj.Properties["extension"] = meta.Extension
		}

		if meta.Version != "" {
			obj.Properties["version"] = meta.Version
		}
	}

	e := &entry{obj: obj, content: bytes.Clone(data)}
	s.objects = append(s.objects, e)
	s.byID[id] = e

	return id
}

func matches(q remote.Query, o remote.Object) bool {
	if q.Name != "" && o.Name != q.Name {
		return false
	}

	if q.NameContains != "" && !strings.Contains(o.Name, q.NameContains) {
		return false
	}

	if q.FoldersOnly && !o.IsFolder {
		return false
	}

	if q.ParentID != "" {
		for _, p := range o.Parents {
			if p == q.ParentID {
				return true
			}
		}

		return false
	}

	return true
}

// project trims an object to what the query asked for.
func project(q remote.Query, o remote.Object) remote.Object {
	if q.IDsOnly {
		return remote.Object{ID: o.ID}
	}

	return clone(o)
}

func clone(o remote.Object) remote.Object {
	o.Parents = append([]string(nil), o.Parents...)
	o.Properties = maps.Clone(o.Properties)

	return o
}

func parents(parent string) []string {
	if parent == "" {
		return nil
	}

	return []string{parent}
}
