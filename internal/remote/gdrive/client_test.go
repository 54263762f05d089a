package gdrive

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/googleapi"

	"github.com/tonimelisma/gdrive-go/internal/remote"
)

func noopSleep(_ context.Context, _ time.Duration) error {
	return nil
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fakeDrive serves the subset of the Drive v3 REST surface the client uses.
type fakeDrive struct {
	mu       sync.Mutex
	requests []*http.Request
	bodies   [][]byte

	list     func(w http.ResponseWriter, r *http.Request)
	create   func(w http.ResponseWriter, r *http.Request, body []byte)
	download func(w http.ResponseWriter, r *http.Request)
}

func (f *fakeDrive) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	body, _ := io.ReadAll(r.Body)

	f.mu.Lock()
	f.requests = append(f.requests, r)
	f.bodies = append(f.bodies, body)
	f.mu.Unlock()

	switch {
	case r.Method == http.MethodGet && r.URL.Path == "/files":
		f.list(w, r)
	case r.Method == http.MethodGet && strings.HasPrefix(r.URL.Path, "/files/"):
		f.download(w, r)
	case r.Method == http.MethodPost && strings.HasSuffix(r.URL.Path, "/files"):
		f.create(w, r, body)
	default:
		http.NotFound(w, r)
	}
}

func (f *fakeDrive) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()

	return len(f.requests)
}

func (f *fakeDrive) request(i int) (*http.Request, []byte) {
	f.mu.Lock()
	defer f.mu.Unlock()

	return f.requests[i], f.bodies[i]
}

func newTestClient(t *testing.T, fake *fakeDrive) *Client {
	t.Helper()

	srv := httptest.NewServer(fake)
	t.Cleanup(srv.Close)

	c, err := New(t.Context(), srv.Client(), Config{Endpoint: srv.URL + "/", UserAgent: "test-agent"}, discardLogger())
	require.NoError(t, err)

	c.sleepFunc = noopSleep

	return c
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

func writeAPIError(w http.ResponseWriter, code int, reason string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	fmt.Fprintf(w, `{"error":{"code":%d,"message":"boom","errors":[{"reason":%q,"message":"boom"}]}}`, code, reason)
}

func TestSearch_MapsFilesAndQuery(t *testing.T) {
	fake := &fakeDrive{list: func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, map[string]any{
			"nextPageToken": "next-1",
			"files": []map[string]any{
				{"id": "f1", "name": "docs", "mimeType": remote.FolderMimeType, "parents": []string{"root"}},
				{
					"id": "f2", "name": "a.txt", "mimeType": "text/plain", "size": "12",
					"md5Checksum": "abc", "modifiedTime": "2026-03-01T10:00:00Z",
					"appProperties": map[string]string{"extension": "txt"},
				},
			},
		})
	}}

	c := newTestClient(t, fake)

	page, err := c.Search(t.Context(), remote.Query{Name: "a'b", ParentID: "p1", PageSize: 50}, "tok-0")
	require.NoError(t, err)

	assert.Equal(t, "next-1", page.NextPageToken)
	require.Len(t, page.Objects, 2)
	assert.True(t, page.Objects[0].IsFolder)
	assert.Equal(t, []string{"root"}, page.Objects[0].Parents)
	assert.Equal(t, int64(12), page.Objects[1].Size)
	assert.Equal(t, "abc", page.Objects[1].MD5)
	assert.Equal(t, "txt", page.Objects[1].Properties["extension"])
	assert.Equal(t, 2026, page.Objects[1].ModifiedAt.Year())

	req, _ := fake.request(0)
	q := req.URL.Query()
	assert.Equal(t, `name = 'a\'b' and 'p1' in parents and trashed = false`, q.Get("q"))
	assert.Equal(t, "tok-0", q.Get("pageToken"))
	assert.Equal(t, "50", q.Get("pageSize"))
	assert.Equal(t, searchFields, q.Get("fields"))
	assert.Contains(t, req.Header.Get("User-Agent"), "test-agent")
}

func TestSearch_IDsOnlyRequestsIDField(t *testing.T) {
	fake := &fakeDrive{list: func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, map[string]any{"files": []map[string]any{{"id": "x"}}})
	}}

	c := newTestClient(t, fake)

	page, err := c.Search(t.Context(), remote.Query{Name: "x", IDsOnly: true}, "")
	require.NoError(t, err)
	require.Len(t, page.Objects, 1)
	assert.Equal(t, "x", page.Objects[0].ID)

	req, _ := fake.request(0)
	assert.Equal(t, idFields, req.URL.Query().Get("fields"))
	assert.Empty(t, req.URL.Query().Get("pageToken"))
}

func TestSearch_RetriesServerErrors(t *testing.T) {
	calls := 0
	fake := &fakeDrive{list: func(w http.ResponseWriter, _ *http.Request) {
		calls++
		if calls < 3 {
			writeAPIError(w, http.StatusServiceUnavailable, "backendError")
			return
		}

		writeJSON(w, map[string]any{"files": []any{}})
	}}

	c := newTestClient(t, fake)

	page, err := c.Search(t.Context(), remote.Query{Name: "x"}, "")
	require.NoError(t, err)
	assert.Empty(t, page.Objects)
	assert.Equal(t, 3, fake.count())
}

func TestSearch_RateLimit403IsThrottled(t *testing.T) {
	fake := &fakeDrive{list: func(w http.ResponseWriter, _ *http.Request) {
		writeAPIError(w, http.StatusForbidden, "userRateLimitExceeded")
	}}

	c := newTestClient(t, fake)
	c.maxRetries = 2

	_, err := c.Search(t.Context(), remote.Query{Name: "x"}, "")
	require.Error(t, err)
	assert.ErrorIs(t, err, remote.ErrThrottled)
	assert.ErrorIs(t, err, remote.ErrTransport)
	assert.Equal(t, 3, fake.count())
}

func TestSearch_NotFoundIsNotRetried(t *testing.T) {
	fake := &fakeDrive{list: func(w http.ResponseWriter, _ *http.Request) {
		writeAPIError(w, http.StatusNotFound, "notFound")
	}}

	c := newTestClient(t, fake)

	_, err := c.Search(t.Context(), remote.Query{ParentID: "gone"}, "")
	require.Error(t, err)
	assert.ErrorIs(t, err, remote.ErrNotFound)

	var rerr *remote.Error
	require.ErrorAs(t, err, &rerr)
	assert.Equal(t, "search", rerr.Op)
	assert.Equal(t, http.StatusNotFound, rerr.StatusCode)
	assert.Equal(t, 1, fake.count())
}

func TestSearch_PlainForbiddenIsNotRetried(t *testing.T) {
	fake := &fakeDrive{list: func(w http.ResponseWriter, _ *http.Request) {
		writeAPIError(w, http.StatusForbidden, "insufficientFilePermissions")
	}}

	c := newTestClient(t, fake)

	_, err := c.Search(t.Context(), remote.Query{Name: "x"}, "")
	assert.ErrorIs(t, err, remote.ErrForbidden)
	assert.Equal(t, 1, fake.count())
}

func TestSearch_ContextCanceled(t *testing.T) {
	fake := &fakeDrive{list: func(w http.ResponseWriter, _ *http.Request) {
		writeAPIError(w, http.StatusInternalServerError, "backendError")
	}}

	c := newTestClient(t, fake)

	ctx, cancel := context.WithCancel(t.Context())
	c.sleepFunc = func(ctx context.Context, _ time.Duration) error {
		cancel()
		return ctx.Err()
	}

	_, err := c.Search(ctx, remote.Query{Name: "x"}, "")
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestCreateObject_Folder(t *testing.T) {
	fake := &fakeDrive{create: func(w http.ResponseWriter, _ *http.Request, _ []byte) {
		writeJSON(w, map[string]any{"id": "new-folder"})
	}}

	c := newTestClient(t, fake)

	id, err := c.CreateObject(t.Context(), remote.Metadata{
		Name: "docs", Parents: []string{"root"}, MimeType: remote.FolderMimeType,
	}, nil)
	require.NoError(t, err)
	assert.Equal(t, "new-folder", id)

	req, body := fake.request(0)
	assert.Equal(t, "/files", req.URL.Path)

	var sent map[string]any
	require.NoError(t, json.Unmarshal(body, &sent))
	assert.Equal(t, "docs", sent["name"])
	assert.Equal(t, remote.FolderMimeType, sent["mimeType"])
	assert.NotContains(t, sent, "appProperties")
}

// multipartParts splits a multipart/related upload into metadata and media.
func multipartParts(t *testing.T, req *http.Request, body []byte) (map[string]any, string, []byte) {
	t.Helper()

	_, params, err := mime.ParseMediaType(req.Header.Get("Content-Type"))
	require.NoError(t, err)

	mr := multipart.NewReader(bytes.NewReader(body), params["boundary"])

	metaPart, err := mr.NextPart()
	require.NoError(t, err)

	var meta map[string]any
	require.NoError(t, json.NewDecoder(metaPart).Decode(&meta))

	mediaPart, err := mr.NextPart()
	require.NoError(t, err)

	media, err := io.ReadAll(mediaPart)
	require.NoError(t, err)

	return meta, mediaPart.Header.Get("Content-Type"), media
}

func TestCreateObject_UploadWithProperties(t *testing.T) {
	fake := &fakeDrive{create: func(w http.ResponseWriter, _ *http.Request, _ []byte) {
		writeJSON(w, map[string]any{"id": "file-1"})
	}}

	c := newTestClient(t, fake)

	id, err := c.CreateObject(t.Context(), remote.Metadata{
		Name: "report.pdf", Parents: []string{"p1"}, MimeType: "application/pdf",
		Description: "quarterly", Extension: "pdf", Version: "3",
	}, strings.NewReader("%PDF-1.4 body"))
	require.NoError(t, err)
	assert.Equal(t, "file-1", id)

	req, body := fake.request(0)
	assert.Equal(t, "multipart", req.URL.Query().Get("uploadType"))

	meta, ct, media := multipartParts(t, req, body)
	assert.Equal(t, "report.pdf", meta["name"])
	assert.Equal(t, "quarterly", meta["description"])
	assert.Equal(t, map[string]any{"extension": "pdf", "version": "3"}, meta["appProperties"])
	assert.Equal(t, "application/pdf", ct)
	assert.Equal(t, "%PDF-1.4 body", string(media))
}

func TestCreateObject_SniffsMissingType(t *testing.T) {
	fake := &fakeDrive{create: func(w http.ResponseWriter, _ *http.Request, _ []byte) {
		writeJSON(w, map[string]any{"id": "file-2"})
	}}

	c := newTestClient(t, fake)

	// Wrapped so the reader is not seekable and the sniffed head is replayed.
	content := io.MultiReader(strings.NewReader("plain text content\n"))

	_, err := c.CreateObject(t.Context(), remote.Metadata{Name: "notes"}, content)
	require.NoError(t, err)

	req, body := fake.request(0)
	meta, ct, media := multipartParts(t, req, body)
	assert.True(t, strings.HasPrefix(ct, "text/plain"), ct)
	assert.True(t, strings.HasPrefix(meta["mimeType"].(string), "text/plain"))
	assert.Equal(t, "plain text content\n", string(media))
}

func TestCreateObject_RetriesOnlyRewindableContent(t *testing.T) {
	calls := 0
	fake := &fakeDrive{create: func(w http.ResponseWriter, _ *http.Request, _ []byte) {
		calls++
		if calls == 1 {
			writeAPIError(w, http.StatusInternalServerError, "backendError")
			return
		}

		writeJSON(w, map[string]any{"id": "ok"})
	}}

	c := newTestClient(t, fake)

	id, err := c.CreateObject(t.Context(), remote.Metadata{Name: "a.txt", MimeType: "text/plain"},
		bytes.NewReader([]byte("seekable")))
	require.NoError(t, err)
	assert.Equal(t, "ok", id)
	assert.Equal(t, 2, fake.count())

	req, body := fake.request(1)
	_, _, media := multipartParts(t, req, body)
	assert.Equal(t, "seekable", string(media))

	calls = 0

	_, err = c.CreateObject(t.Context(), remote.Metadata{Name: "b.txt", MimeType: "text/plain"},
		io.MultiReader(strings.NewReader("stream")))
	require.Error(t, err)
	assert.ErrorIs(t, err, remote.ErrServerError)
	assert.Equal(t, 3, fake.count())
}

func TestGetContent(t *testing.T) {
	fake := &fakeDrive{download: func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/files/file-9" || r.URL.Query().Get("alt") != "media" {
			writeAPIError(w, http.StatusNotFound, "notFound")
			return
		}

		_, _ = w.Write([]byte("payload"))
	}}

	c := newTestClient(t, fake)

	rc, err := c.GetContent(t.Context(), "file-9")
	require.NoError(t, err)

	data, err := io.ReadAll(rc)
	require.NoError(t, err)
	require.NoError(t, rc.Close())
	assert.Equal(t, "payload", string(data))

	_, err = c.GetContent(t.Context(), "missing")
	assert.ErrorIs(t, err, remote.ErrNotFound)
}

func TestRetryBackoff_HonorsRetryAfter(t *testing.T) {
	c := &Client{}

	err := &googleapi.Error{Code: http.StatusTooManyRequests, Header: http.Header{"Retry-After": []string{"7"}}}
	assert.Equal(t, 7*time.Second, c.retryBackoff(err, 0))

	d := c.retryBackoff(&googleapi.Error{Code: http.StatusServiceUnavailable}, 0)
	assert.InDelta(t, float64(baseBackoff), float64(d), float64(baseBackoff)*jitterFraction)
}

func TestCalcBackoff_MaxCap(t *testing.T) {
	d := calcBackoff(30)
	assert.LessOrEqual(t, d, time.Duration(float64(maxBackoff)*(1+jitterFraction)))
	assert.GreaterOrEqual(t, d, time.Duration(float64(maxBackoff)*(1-jitterFraction)))
}

func TestClassify_NetworkError(t *testing.T) {
	err := classify("get", io.ErrUnexpectedEOF)
	assert.ErrorIs(t, err, remote.ErrTransport)
	assert.ErrorIs(t, err, io.ErrUnexpectedEOF)
	assert.True(t, retryable(io.ErrUnexpectedEOF))
}

func TestTimeSleep_ContextCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(t.Context())
	cancel()

	assert.ErrorIs(t, timeSleep(ctx, time.Hour), context.Canceled)
	assert.NoError(t, timeSleep(t.Context(), time.Millisecond))
}

func TestClient_ImplementsStore(t *testing.T) {
	var _ remote.Store = (*Client)(nil)
}
