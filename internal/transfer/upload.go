package transfer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/tonimelisma/gdrive-go/internal/mimetable"
	"github.com/tonimelisma/gdrive-go/internal/remote"
	"github.com/tonimelisma/gdrive-go/internal/resolve"
	"github.com/tonimelisma/gdrive-go/internal/vpath"
)

// UploadMeta overrides metadata of an uploaded object. Zero fields are
// derived: the name from the remote path, the content type from the MIME
// table.
type UploadMeta struct {
	Name        string
	MimeType    string
	Description string
	Version     string
}

// UploadResult reports one uploaded file.
type UploadResult struct {
	LocalPath  string
	RemotePath string
	ID         string
	Name       string
	MimeType   string
	Parent     string // "" for the top level
	Size       int64
	Err        error
}

// Upload copies the local file at localPath to remotePath. When remotePath
// is empty or ends in "/", the local base name is appended. The directory
// portion of remotePath is resolved to a parent folder; see WithStrictPaths
// for what happens when it does not fully exist.
func (o *Orchestrator) Upload(ctx context.Context, localPath, remotePath string, meta *UploadMeta) (UploadResult, error) {
	res, err := o.upload(ctx, o.newBatchID(), localPath, remotePath, meta)

	return res, wrapOp(OpUpload, localPath, err)
}

// UploadCollection uploads every local path into the remote folder
// remoteDir. All paths are validated before the first upload starts; paths
// that fail validation are reported and skipped. Valid paths are uploaded
// independently: one failure neither aborts nor rolls back the others. The
// returned error joins every per-file error.
func (o *Orchestrator) UploadCollection(ctx context.Context, localPaths []string, remoteDir string) ([]UploadResult, error) {
	if _, err := o.sess.EnsureActive(ctx); err != nil {
		return nil, err
	}

	if !strings.HasSuffix(remoteDir, vpath.Separator) {
		remoteDir += vpath.Separator
	}

	batchID := o.newBatchID()
	results := make([]UploadResult, len(localPaths))

	var valid []int

	for i, p := range localPaths {
		results[i] = UploadResult{LocalPath: p}

		if err := o.validateUpload(p); err != nil {
			results[i].Err = wrapOp(OpUpload, p, err)
			o.record(ctx, Record{
				BatchID: batchID, Op: OpUpload, LocalPath: p,
				Status: StatusSkipped, Err: err.Error(),
			})

			continue
		}

		valid = append(valid, i)
	}

	o.logger.Info("uploading collection",
		slog.String("batch", batchID),
		slog.Int("files", len(localPaths)),
		slog.Int("valid", len(valid)),
		slog.String("dest", remoteDir),
	)

	o.runBatch(ctx, len(valid), func(ctx context.Context, k int) {
		i := valid[k]
		res, err := o.upload(ctx, batchID, localPaths[i], remoteDir, nil)
		res.Err = wrapOp(OpUpload, localPaths[i], err)
		results[i] = res
	})

	return results, joinResultErrors(results, func(r UploadResult) error { return r.Err })
}

// validateUpload checks a local path before any remote call.
func (o *Orchestrator) validateUpload(localPath string) error {
	if localPath == "" {
		return ErrEmptyPath
	}

	if err := o.filter.CheckAllowed(localPath); err != nil {
		return err
	}

	info, err := os.Stat(localPath)
	if err != nil {
		return fmt.Errorf("stat: %w", err)
	}

	if info.IsDir() {
		return fmt.Errorf("%s is a directory", localPath)
	}

	return nil
}

func (o *Orchestrator) upload(
	ctx context.Context, batchID, localPath, remotePath string, meta *UploadMeta,
) (res UploadResult, err error) {
	res = UploadResult{LocalPath: localPath}

	defer func() {
		o.record(ctx, Record{
			BatchID: batchID, Op: OpUpload, LocalPath: localPath,
			RemotePath: res.RemotePath, RemoteID: res.ID,
			Status: statusOf(err), Err: errString(err), Bytes: res.Size,
		})
	}()

	h, resolver, err := o.active(ctx)
	if err != nil {
		return res, err
	}

	if err := o.validateUpload(localPath); err != nil {
		return res, err
	}

	target, err := uploadTarget(localPath, remotePath)
	if err != nil {
		return res, err
	}

	res.RemotePath = target.String()

	resolved, err := resolver.Resolve(ctx, target)
	if err != nil {
		return res, err
	}

	if err := o.checkResolved(resolved, target); err != nil {
		return res, err
	}

	md, err := buildMetadata(h.Types, localPath, target.Leaf(), meta)
	if err != nil {
		return res, err
	}

	md.Parents = resolved.Parents()

	f, err := os.Open(localPath)
	if err != nil {
		return res, fmt.Errorf("opening %s: %w", localPath, err)
	}
	defer f.Close()

	if info, statErr := f.Stat(); statErr == nil {
		res.Size = info.Size()
	}

	id, err := h.Store.CreateObject(ctx, md, f)
	if err != nil {
		return res, err
	}

	res.ID = id
	res.Name = md.Name
	res.MimeType = md.MimeType
	res.Parent = resolved.Parent()

	o.logger.Info("uploaded",
		slog.String("local", localPath),
		slog.String("remote", res.RemotePath),
		slog.String("id", id),
		slog.Int64("size", res.Size),
	)

	return res, nil
}

// uploadTarget returns the remote path an upload lands at.
func uploadTarget(localPath, remotePath string) (vpath.Path, error) {
	p, err := vpath.Parse(remotePath)
	if err != nil {
		return vpath.Path{}, err
	}

	if p.IsDir() {
		return p.Join(vpath.Base(localPath)), nil
	}

	return p, nil
}

// checkResolved applies the strict-paths policy to a resolution result.
func (o *Orchestrator) checkResolved(res resolve.Result, target vpath.Path) error {
	if res.Complete() {
		return nil
	}

	if o.strict {
		return res.Strict()
	}

	o.logger.Warn("parent folder missing, placing under deepest existing folder",
		slog.String("path", target.String()),
		slog.Any("missing", res.Missing()),
		slog.String("parent", res.Parent()),
	)

	return nil
}

// buildMetadata assembles create metadata. The content type comes from the
// override, else from the MIME table, else it is left for the store to
// infer.
func buildMetadata(types *mimetable.Table, localPath, name string, meta *UploadMeta) (remote.Metadata, error) {
	md := remote.Metadata{Name: name}

	if ext, ok := vpath.Ext(localPath); ok {
		md.Extension = strings.TrimPrefix(ext, ".")
	}

	if meta != nil {
		if meta.Name != "" {
			md.Name = vpath.Normalize(meta.Name)
		}

		md.MimeType = meta.MimeType
		md.Description = meta.Description
		md.Version = meta.Version
	}

	if md.MimeType == "" {
		ct, err := types.Classify(localPath)
		if err != nil {
			return remote.Metadata{}, err
		}

		md.MimeType = ct
	}

	return md, nil
}

// CreateDir creates a folder at path. The parent portion of path is
// resolved like an upload destination. Returns the new folder's ID.
func (o *Orchestrator) CreateDir(ctx context.Context, path string) (id string, err error) {
	batchID := o.newBatchID()

	defer func() {
		o.record(ctx, Record{
			BatchID: batchID, Op: OpMkdir, RemotePath: path, RemoteID: id,
			Status: statusOf(err), Err: errString(err),
		})
	}()

	h, resolver, err := o.active(ctx)
	if err != nil {
		return "", wrapOp(OpMkdir, path, err)
	}

	p, err := vpath.Parse(path)
	if err != nil {
		return "", wrapOp(OpMkdir, path, err)
	}

	if p.IsEmpty() {
		return "", wrapOp(OpMkdir, path, ErrEmptyPath)
	}

	resolved, err := resolver.Resolve(ctx, p)
	if err != nil {
		return "", wrapOp(OpMkdir, path, err)
	}

	if err := o.checkResolved(resolved, p); err != nil {
		return "", wrapOp(OpMkdir, path, err)
	}

	id, err = h.Store.CreateObject(ctx, remote.Metadata{
		Name:     p.Leaf(),
		Parents:  resolved.Parents(),
		MimeType: remote.FolderMimeType,
	}, nil)
	if err != nil {
		return "", wrapOp(OpMkdir, path, err)
	}

	o.logger.Info("created folder", slog.String("path", p.String()), slog.String("id", id))

	return id, nil
}

// joinResultErrors joins the per-item errors of a batch.
func joinResultErrors[T any](results []T, errOf func(T) error) error {
	var errs []error

	for _, r := range results {
		if err := errOf(r); err != nil {
			errs = append(errs, err)
		}
	}

	return errors.Join(errs...)
}
