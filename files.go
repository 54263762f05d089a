package main

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"

	"github.com/spf13/cobra"

	"github.com/tonimelisma/gdrive-go/internal/remote"
	"github.com/tonimelisma/gdrive-go/internal/transfer"
)

func newPutCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "put <local-path> [remote-path]",
		Short: "Upload a file",
		Long: `Upload a local file to a remote path. When remote-path is omitted or ends
in "/", the local file name is appended.

Parent folders are resolved by name. With --strict a missing parent is an
error; otherwise the file lands in the deepest folder that exists.`,
		Args: cobra.RangeArgs(1, 2),
		RunE: runPut,
	}

	cmd.Flags().String("name", "", "remote name (default: last path component)")
	cmd.Flags().String("mime-type", "", "content type (default: from the MIME table)")
	cmd.Flags().String("description", "", "object description")
	cmd.Flags().String("file-version", "", "version stored with the object")

	return cmd
}

func newPutAllCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "put-all <remote-dir> <local-path>...",
		Short: "Upload several files into one remote folder",
		Long: `Upload every local file into remote-dir. All files are checked before the
first upload starts. A failed file does not stop or roll back the others.`,
		Args: cobra.MinimumNArgs(2), //nolint:mnd // remote dir plus at least one file
		RunE: runPutAll,
	}
}

func newGetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get <remote-path>...",
		Short: "Download files by name",
		Long: `Download every remote file named like the last component of each path
into the download directory. When several remote files share the name,
the last one downloaded wins.`,
		Args: cobra.MinimumNArgs(1),
		RunE: runGet,
	}
}

func newMkdirCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "mkdir <path>",
		Short: "Create a folder",
		Args:  cobra.ExactArgs(1),
		RunE:  runMkdir,
	}
}

func newFindCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "find <name>",
		Short: "Search for files and folders",
		Long: `Search the whole drive. By default the name must match exactly. --ext
matches names containing the argument; --dir only returns folders.`,
		Args: cobra.ExactArgs(1),
		RunE: runFind,
	}

	cmd.Flags().Bool("ext", false, "match names containing the argument, e.g. .pdf")
	cmd.Flags().Bool("dir", false, "only match folders")
	cmd.MarkFlagsMutuallyExclusive("ext", "dir")

	return cmd
}

// uploadJSON is the JSON output schema for one uploaded file.
type uploadJSON struct {
	LocalPath  string `json:"local_path"`
	RemotePath string `json:"remote_path,omitempty"`
	ID         string `json:"id,omitempty"`
	MimeType   string `json:"mime_type,omitempty"`
	Parent     string `json:"parent,omitempty"`
	Size       int64  `json:"size"`
	Error      string `json:"error,omitempty"`
}

func toUploadJSON(r *transfer.UploadResult) uploadJSON {
	return uploadJSON{
		LocalPath:  r.LocalPath,
		RemotePath: r.RemotePath,
		ID:         r.ID,
		MimeType:   r.MimeType,
		Parent:     r.Parent,
		Size:       r.Size,
		Error:      errText(r.Err),
	}
}

func runPut(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	cc := mustCLIContext(ctx)

	remotePath := ""
	if len(args) > 1 {
		remotePath = args[1]
	}

	meta, err := uploadMetaFromFlags(cmd)
	if err != nil {
		return err
	}

	orch, cleanup, err := cc.newOrchestrator(ctx, 1)
	if err != nil {
		return err
	}
	defer cleanup()

	res, err := orch.Upload(ctx, args[0], remotePath, meta)
	if err != nil {
		return err
	}

	if cc.Flags.JSON {
		return writeJSON(cmd.OutOrStdout(), toUploadJSON(&res))
	}

	cc.Statusf("Uploaded %s to %s (%s)\n", res.LocalPath, res.RemotePath, formatSize(res.Size))

	return nil
}

// uploadMetaFromFlags returns nil when no metadata flag is set, so the
// orchestrator derives everything.
func uploadMetaFromFlags(cmd *cobra.Command) (*transfer.UploadMeta, error) {
	var meta transfer.UploadMeta

	fields := []struct {
		flag string
		dst  *string
	}{
		{"name", &meta.Name},
		{"mime-type", &meta.MimeType},
		{"description", &meta.Description},
		{"file-version", &meta.Version},
	}

	set := false

	for _, f := range fields {
		v, err := cmd.Flags().GetString(f.flag)
		if err != nil {
			return nil, err
		}

		if v != "" {
			*f.dst = v
			set = true
		}
	}

	if !set {
		return nil, nil
	}

	return &meta, nil
}

func runPutAll(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	cc := mustCLIContext(ctx)

	orch, cleanup, err := cc.newOrchestrator(ctx, cc.Cfg.ParallelUploads)
	if err != nil {
		return err
	}
	defer cleanup()

	results, uploadErr := orch.UploadCollection(ctx, args[1:], args[0])

	if cc.Flags.JSON {
		out := make([]uploadJSON, 0, len(results))
		for i := range results {
			out = append(out, toUploadJSON(&results[i]))
		}

		if err := writeJSON(cmd.OutOrStdout(), out); err != nil {
			return err
		}
	} else {
		printUploadTable(cmd.OutOrStdout(), results)
	}

	if uploadErr != nil {
		return fmt.Errorf("%d of %d uploads failed: %w", countUploadFailures(results), len(results), uploadErr)
	}

	return nil
}

func countUploadFailures(results []transfer.UploadResult) int {
	n := 0

	for i := range results {
		if results[i].Err != nil {
			n++
		}
	}

	return n
}

func printUploadTable(w io.Writer, results []transfer.UploadResult) {
	headers := []string{"LOCAL", "REMOTE", "SIZE", "STATUS"}
	rows := make([][]string, 0, len(results))

	for i := range results {
		r := &results[i]
		rows = append(rows, []string{r.LocalPath, r.RemotePath, formatSize(r.Size), statusText(r.Err)})
	}

	printTable(w, headers, rows)
}

// downloadJSON is the JSON output schema for one downloaded file.
type downloadJSON struct {
	Path      string `json:"path"`
	ID        string `json:"id,omitempty"`
	Name      string `json:"name,omitempty"`
	LocalPath string `json:"local_path,omitempty"`
	Size      int64  `json:"size"`
	MD5       string `json:"md5,omitempty"`
	Error     string `json:"error,omitempty"`
}

func runGet(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	cc := mustCLIContext(ctx)

	orch, cleanup, err := cc.newOrchestrator(ctx, cc.Cfg.ParallelDownloads)
	if err != nil {
		return err
	}
	defer cleanup()

	var (
		results     []transfer.DownloadResult
		downloadErr error
	)

	if len(args) == 1 {
		results, downloadErr = orch.Download(ctx, args[0])
	} else {
		results, downloadErr = orch.DownloadMultiple(ctx, args)
	}

	if cc.Flags.JSON {
		out := make([]downloadJSON, 0, len(results))
		for i := range results {
			r := &results[i]
			out = append(out, downloadJSON{
				Path: r.Path, ID: r.ID, Name: r.Name, LocalPath: r.LocalPath,
				Size: r.Size, MD5: r.MD5, Error: errText(r.Err),
			})
		}

		if err := writeJSON(cmd.OutOrStdout(), out); err != nil {
			return err
		}
	} else if len(results) > 0 {
		printDownloadTable(cmd.OutOrStdout(), results)
	}

	if len(results) == 0 && downloadErr == nil {
		cc.Statusf("No matching files.\n")
	}

	return downloadErr
}

func printDownloadTable(w io.Writer, results []transfer.DownloadResult) {
	headers := []string{"NAME", "LOCAL", "SIZE", "STATUS"}
	rows := make([][]string, 0, len(results))

	for i := range results {
		r := &results[i]
		rows = append(rows, []string{r.Name, r.LocalPath, formatSize(r.Size), statusText(r.Err)})
	}

	printTable(w, headers, rows)
}

// mkdirJSONOutput is the JSON output schema for the mkdir command.
type mkdirJSONOutput struct {
	Created string `json:"created"`
	ID      string `json:"id"`
}

func runMkdir(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	cc := mustCLIContext(ctx)

	orch, cleanup, err := cc.newOrchestrator(ctx, 1)
	if err != nil {
		return err
	}
	defer cleanup()

	id, err := orch.CreateDir(ctx, args[0])
	if err != nil {
		return err
	}

	if cc.Flags.JSON {
		return writeJSON(cmd.OutOrStdout(), mkdirJSONOutput{Created: args[0], ID: id})
	}

	cc.Statusf("Created %s\n", args[0])

	return nil
}

// findJSONItem is the JSON output schema for one search result.
type findJSONItem struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	IsFolder   bool   `json:"is_folder"`
	MimeType   string `json:"mime_type,omitempty"`
	Size       int64  `json:"size"`
	MD5        string `json:"md5,omitempty"`
	ModifiedAt string `json:"modified_at,omitempty"`
}

func runFind(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	cc := mustCLIContext(ctx)

	byExt, err := cmd.Flags().GetBool("ext")
	if err != nil {
		return err
	}

	dirsOnly, err := cmd.Flags().GetBool("dir")
	if err != nil {
		return err
	}

	orch, cleanup, err := cc.newOrchestrator(ctx, 1)
	if err != nil {
		return err
	}
	defer cleanup()

	var objs []remote.Object

	switch {
	case byExt:
		objs, err = orch.FindByExtension(ctx, args[0])
	case dirsOnly:
		objs, err = orch.FindDirectory(ctx, args[0])
	default:
		objs, err = orch.FindByName(ctx, args[0])
	}

	if err != nil {
		return fmt.Errorf("searching %q: %w", args[0], err)
	}

	if cc.Flags.JSON {
		return printObjectsJSON(cmd.OutOrStdout(), objs)
	}

	if len(objs) == 0 {
		cc.Statusf("No matches.\n")
		return nil
	}

	printObjectsTable(cmd.OutOrStdout(), objs)

	return nil
}

func printObjectsJSON(w io.Writer, objs []remote.Object) error {
	out := make([]findJSONItem, 0, len(objs))

	for i := range objs {
		item := findJSONItem{
			ID:       objs[i].ID,
			Name:     objs[i].Name,
			IsFolder: objs[i].IsFolder,
			MimeType: objs[i].MimeType,
			Size:     objs[i].Size,
			MD5:      objs[i].MD5,
		}

		if !objs[i].ModifiedAt.IsZero() {
			item.ModifiedAt = objs[i].ModifiedAt.UTC().Format("2006-01-02T15:04:05Z")
		}

		out = append(out, item)
	}

	return writeJSON(w, out)
}

func printObjectsTable(w io.Writer, objs []remote.Object) {
	// Folders first, then alphabetical. Search order is kept on ties.
	sorted := make([]remote.Object, len(objs))
	copy(sorted, objs)

	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].IsFolder != sorted[j].IsFolder {
			return sorted[i].IsFolder
		}

		return sorted[i].Name < sorted[j].Name
	})

	headers := []string{"NAME", "SIZE", "MODIFIED", "ID"}
	rows := make([][]string, 0, len(sorted))

	for i := range sorted {
		name := sorted[i].Name
		size := formatSize(sorted[i].Size)

		if sorted[i].IsFolder {
			name += "/"
			size = "-"
		}

		modified := "-"
		if !sorted[i].ModifiedAt.IsZero() {
			modified = formatTime(sorted[i].ModifiedAt)
		}

		rows = append(rows, []string{name, size, modified, sorted[i].ID})
	}

	printTable(w, headers, rows)
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")

	return enc.Encode(v)
}

func errText(err error) string {
	if err == nil {
		return ""
	}

	return err.Error()
}

func statusText(err error) string {
	if err == nil {
		return "ok"
	}

	return "failed: " + err.Error()
}
