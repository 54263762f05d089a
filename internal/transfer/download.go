package transfer

import (
	"context"
	"crypto/md5" //nolint:gosec // Drive publishes MD5 checksums
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/tonimelisma/gdrive-go/internal/exclude"
	"github.com/tonimelisma/gdrive-go/internal/remote"
	"github.com/tonimelisma/gdrive-go/internal/vpath"
)

// partialSuffix marks an in-progress download.
const partialSuffix = ".partial"

// DownloadResult reports one downloaded remote file.
type DownloadResult struct {
	Path      string // requested path
	ID        string
	Name      string
	LocalPath string
	Size      int64
	MD5       string
	Err       error
}

// Download fetches every remote file named like path's last component into
// the download directory under that name. A bare name and a full path
// search the same way: by name, across the whole store. When several remote
// files share the name they are written one after another in search order,
// each replacing the previous local file, so the last match wins. Folders
// are skipped. Zero matches is not an error.
func (o *Orchestrator) Download(ctx context.Context, path string) ([]DownloadResult, error) {
	return o.download(ctx, o.newBatchID(), path)
}

// DownloadMultiple downloads each path independently. One failure does not
// stop the others; the returned error joins every failure. Paths that write
// to the same local file run in input order so the last-write-wins outcome
// matches a sequential run.
func (o *Orchestrator) DownloadMultiple(ctx context.Context, paths []string) ([]DownloadResult, error) {
	if _, err := o.sess.EnsureActive(ctx); err != nil {
		return nil, err
	}

	batchID := o.newBatchID()
	groups := groupByLocalName(paths)
	perPath := make([][]DownloadResult, len(paths))
	errs := make([]error, len(paths))

	o.logger.Info("downloading batch",
		slog.String("batch", batchID),
		slog.Int("paths", len(paths)),
		slog.Int("groups", len(groups)),
	)

	o.runBatch(ctx, len(groups), func(ctx context.Context, g int) {
		for _, i := range groups[g] {
			perPath[i], errs[i] = o.download(ctx, batchID, paths[i])
		}
	})

	var out []DownloadResult
	for _, rs := range perPath {
		out = append(out, rs...)
	}

	return out, errors.Join(errs...)
}

// groupByLocalName groups path indexes by the local file they write to,
// keeping input order inside each group and ordering groups by first
// appearance.
func groupByLocalName(paths []string) [][]int {
	index := make(map[string]int)

	var groups [][]int

	for i, p := range paths {
		key := p
		if name, err := searchName(p); err == nil {
			key = name
		}

		g, ok := index[key]
		if !ok {
			g = len(groups)
			index[key] = g
			groups = append(groups, nil)
		}

		groups[g] = append(groups[g], i)
	}

	return groups
}

// searchName returns the remote name a download path searches for.
func searchName(path string) (string, error) {
	p, err := vpath.Parse(path)
	if err != nil {
		return "", err
	}

	if p.IsEmpty() {
		return "", ErrEmptyPath
	}

	return p.Leaf(), nil
}

func (o *Orchestrator) download(ctx context.Context, batchID, path string) ([]DownloadResult, error) {
	h, _, err := o.active(ctx)
	if err != nil {
		return nil, err
	}

	name, err := searchName(path)
	if err != nil {
		return nil, wrapOp(OpDownload, path, err)
	}

	if ext, ok := vpath.Ext(name); ok && o.filter.IsExcluded(ext) {
		err := fmt.Errorf("%w %q", exclude.ErrUnsupportedExtension, ext)
		o.record(ctx, Record{
			BatchID: batchID, Op: OpDownload, RemotePath: path,
			Status: StatusSkipped, Err: err.Error(),
		})

		return nil, wrapOp(OpDownload, path, err)
	}

	matches, err := remote.All(ctx, h.Store, remote.Query{Name: name})
	if err != nil {
		o.record(ctx, Record{
			BatchID: batchID, Op: OpDownload, RemotePath: path,
			Status: StatusFailed, Err: err.Error(),
		})

		return nil, wrapOp(OpDownload, path, err)
	}

	dest := filepath.Join(o.downloadDir, name)

	var (
		results []DownloadResult
		errs    []error
	)

	for _, obj := range matches {
		if obj.IsFolder {
			o.logger.Debug("skipping folder match", slog.String("name", name), slog.String("id", obj.ID))
			continue
		}

		res, err := o.fetch(ctx, h.Store, obj, dest)
		res.Path = path
		res.Err = wrapOp(OpDownload, path, err)

		o.record(ctx, Record{
			BatchID: batchID, Op: OpDownload, LocalPath: dest, RemotePath: path,
			RemoteID: obj.ID, Status: statusOf(err), Err: errString(err), Bytes: res.Size,
		})

		results = append(results, res)

		if res.Err != nil {
			errs = append(errs, res.Err)
		}
	}

	if len(results) == 0 {
		o.logger.Info("no remote file matches", slog.String("name", name))
	}

	return results, errors.Join(errs...)
}

// fetch streams obj to dest through a .partial file and renames it into
// place. When the store reports an MD5 checksum the download is verified
// and repeated up to o.hashRetries times on mismatch.
func (o *Orchestrator) fetch(ctx context.Context, store remote.Store, obj remote.Object, dest string) (DownloadResult, error) {
	res := DownloadResult{ID: obj.ID, Name: obj.Name, LocalPath: dest}

	if err := os.MkdirAll(filepath.Dir(dest), 0o700); err != nil { //nolint:mnd // owner-only dir perms
		return res, fmt.Errorf("creating download dir: %w", err)
	}

	partial := dest + partialSuffix

	for attempt := range o.hashRetries + 1 {
		sum, size, err := fetchToPartial(ctx, store, obj.ID, partial)
		if err != nil {
			return res, err
		}

		if obj.MD5 == "" || sum == obj.MD5 {
			if err := os.Rename(partial, dest); err != nil {
				os.Remove(partial)
				return res, fmt.Errorf("renaming partial to %s: %w", dest, err)
			}

			res.Size = size
			res.MD5 = sum

			o.logger.Info("downloaded",
				slog.String("id", obj.ID),
				slog.String("local", dest),
				slog.Int64("size", size),
			)

			return res, nil
		}

		os.Remove(partial)

		if attempt < o.hashRetries {
			o.logger.Warn("download checksum mismatch, retrying",
				slog.String("id", obj.ID),
				slog.Int("attempt", attempt+1),
				slog.String("local_md5", sum),
				slog.String("remote_md5", obj.MD5),
			)
		}
	}

	return res, fmt.Errorf("%w: %s after %d attempts", ErrChecksumMismatch, obj.ID, o.hashRetries+1)
}

// fetchToPartial downloads id into partial, returning the hex MD5 and the
// byte count. The partial file is removed on failure.
func fetchToPartial(ctx context.Context, store remote.Store, id, partial string) (string, int64, error) {
	rc, err := store.GetContent(ctx, id)
	if err != nil {
		return "", 0, err
	}
	defer rc.Close()

	f, err := os.OpenFile(partial, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o600) //nolint:mnd // owner-only file perms
	if err != nil {
		return "", 0, fmt.Errorf("creating partial file %s: %w", partial, err)
	}

	h := md5.New() //nolint:gosec // checksum, not security

	n, copyErr := io.Copy(io.MultiWriter(f, h), rc)
	closeErr := f.Close()

	if copyErr != nil {
		os.Remove(partial)
		return "", 0, fmt.Errorf("writing %s: %w", partial, copyErr)
	}

	if closeErr != nil {
		os.Remove(partial)
		return "", 0, fmt.Errorf("closing %s: %w", partial, closeErr)
	}

	return hex.EncodeToString(h.Sum(nil)), n, nil
}
