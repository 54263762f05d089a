package main

import (
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/tonimelisma/gdrive-go/internal/ledger"
	"github.com/tonimelisma/gdrive-go/internal/transfer"
)

const defaultHistoryLimit = 20

func newHistoryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show recent transfers",
		Long: `Show the transfer history, newest first. Every upload, download and folder
creation is recorded while the history config key is enabled.`,
		Args: cobra.NoArgs,
		RunE: runHistory,
	}

	cmd.Flags().Int("limit", defaultHistoryLimit, "maximum number of records")
	cmd.Flags().String("batch", "", "show every record of one batch")

	prune := &cobra.Command{
		Use:   "prune",
		Short: "Delete old history records",
		Args:  cobra.NoArgs,
		RunE:  runHistoryPrune,
	}

	prune.Flags().Duration("older-than", 30*24*time.Hour, "delete records older than this") //nolint:mnd // 30 days

	cmd.AddCommand(prune)

	return cmd
}

// historyJSONRecord is the JSON output schema for one history record.
type historyJSONRecord struct {
	BatchID    string `json:"batch_id"`
	Op         string `json:"op"`
	Status     string `json:"status"`
	LocalPath  string `json:"local_path,omitempty"`
	RemotePath string `json:"remote_path,omitempty"`
	RemoteID   string `json:"remote_id,omitempty"`
	Bytes      int64  `json:"bytes"`
	Error      string `json:"error,omitempty"`
	At         string `json:"at"`
}

// openHistory opens the history database, or fails when history is off.
func (cc *CLIContext) openHistory(cmd *cobra.Command) (*ledger.Ledger, error) {
	if !cc.Cfg.History {
		return nil, errors.New("transfer history is disabled (history = false)")
	}

	return ledger.Open(cmd.Context(), cc.Cfg.HistoryDB, cc.Logger)
}

func runHistory(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	cc := mustCLIContext(ctx)

	limit, err := cmd.Flags().GetInt("limit")
	if err != nil {
		return err
	}

	batch, err := cmd.Flags().GetString("batch")
	if err != nil {
		return err
	}

	hist, err := cc.openHistory(cmd)
	if err != nil {
		return err
	}
	defer hist.Close()

	var recs []transfer.Record
	if batch != "" {
		recs, err = hist.Batch(ctx, batch)
	} else {
		recs, err = hist.Recent(ctx, limit)
	}

	if err != nil {
		return fmt.Errorf("reading history: %w", err)
	}

	if cc.Flags.JSON {
		return printHistoryJSON(cmd.OutOrStdout(), recs)
	}

	if len(recs) == 0 {
		cc.Statusf("No transfers recorded.\n")
		return nil
	}

	printHistoryTable(cmd.OutOrStdout(), recs)

	return nil
}

func runHistoryPrune(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	cc := mustCLIContext(ctx)

	olderThan, err := cmd.Flags().GetDuration("older-than")
	if err != nil {
		return err
	}

	if olderThan <= 0 {
		return fmt.Errorf("--older-than must be positive, got %s", olderThan)
	}

	hist, err := cc.openHistory(cmd)
	if err != nil {
		return err
	}
	defer hist.Close()

	n, err := hist.Prune(ctx, time.Now().Add(-olderThan))
	if err != nil {
		return fmt.Errorf("pruning history: %w", err)
	}

	cc.Statusf("Deleted %d records.\n", n)

	return nil
}

func printHistoryJSON(w io.Writer, recs []transfer.Record) error {
	out := make([]historyJSONRecord, 0, len(recs))

	for i := range recs {
		r := &recs[i]
		out = append(out, historyJSONRecord{
			BatchID:    r.BatchID,
			Op:         string(r.Op),
			Status:     string(r.Status),
			LocalPath:  r.LocalPath,
			RemotePath: r.RemotePath,
			RemoteID:   r.RemoteID,
			Bytes:      r.Bytes,
			Error:      r.Err,
			At:         r.At.UTC().Format(time.RFC3339),
		})
	}

	return writeJSON(w, out)
}

func printHistoryTable(w io.Writer, recs []transfer.Record) {
	headers := []string{"TIME", "OP", "STATUS", "LOCAL", "REMOTE", "SIZE"}
	rows := make([][]string, 0, len(recs))

	for i := range recs {
		r := &recs[i]

		status := string(r.Status)
		if r.Err != "" {
			status += ": " + r.Err
		}

		rows = append(rows, []string{
			formatTime(r.At), string(r.Op), status, orDash(r.LocalPath), orDash(r.RemotePath), formatSize(r.Bytes),
		})
	}

	printTable(w, headers, rows)
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}

	return s
}
