// Package worker regenerates the CSV export of the transaction
// collection. It reacts to mutation events from the broker and also
// refreshes on a timer, so a missed event only delays the export
// instead of losing it.
package worker

import (
	"context"
	"encoding/csv"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"bilancio/internal/amqp"
	"bilancio/internal/core"
	"bilancio/internal/gateway"
	"bilancio/internal/pipeline"
)

var csvHeader = []string{"id", "date", "type", "category", "description", "amount"}

// ExportWorker rebuilds the CSV snapshot from the persisted collection.
type ExportWorker struct {
	gw   gateway.Gateway
	path string
}

func NewExportWorker(gw gateway.Gateway, path string) *ExportWorker {
	return &ExportWorker{gw: gw, path: path}
}

// HandleEvent processes a single mutation event by regenerating the
// whole export. The event carries only the ID, so a full rebuild is the
// simplest consistent reaction.
func (w *ExportWorker) HandleEvent(ctx context.Context, ev *amqp.TransactionEvent) error {
	slog.InfoContext(ctx, "Processing transaction event",
		"event", string(ev.Event),
		"id", ev.ID,
		"timestamp", ev.Timestamp)

	if err := w.Export(ctx); err != nil {
		return fmt.Errorf("regenerate export: %w", err)
	}
	return nil
}

// Export loads the persisted collection and rewrites the CSV file. The
// write goes through a temp file and a rename so readers never see a
// half-written export.
func (w *ExportWorker) Export(ctx context.Context) error {
	all, err := w.gw.Load(ctx)
	if err != nil {
		return fmt.Errorf("load transactions: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(w.path), 0755); err != nil {
		return fmt.Errorf("create export directory: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(w.path), "export-*.csv")
	if err != nil {
		return fmt.Errorf("create temp export file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if err := writeCSV(tmp, all); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp export file: %w", err)
	}

	if err := os.Rename(tmp.Name(), w.path); err != nil {
		return fmt.Errorf("replace export file: %w", err)
	}

	sum := pipeline.Summarize(all)
	slog.InfoContext(ctx, "Export regenerated",
		"path", w.path,
		"count", len(all),
		"total_income_cents", sum.TotalIncome.Cents,
		"total_expenses_cents", sum.TotalExpenses.Cents,
		"balance_cents", sum.Balance.Cents)

	return nil
}

// RunPeriodic refreshes the export on a fixed interval until ctx is
// done. The first export runs immediately.
func (w *ExportWorker) RunPeriodic(ctx context.Context, interval time.Duration) error {
	if err := w.Export(ctx); err != nil {
		slog.ErrorContext(ctx, "Initial export failed", "error", err)
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := w.Export(ctx); err != nil {
				slog.ErrorContext(ctx, "Periodic export failed", "error", err)
			}
		}
	}
}

func writeCSV(f *os.File, all []core.Transaction) error {
	cw := csv.NewWriter(f)

	if err := cw.Write(csvHeader); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}

	for _, t := range all {
		row := []string{
			strconv.FormatInt(t.ID, 10),
			t.Date.String(),
			string(t.Type),
			t.Category,
			t.Description,
			t.Amount.String(),
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("write csv row (id=%d): %w", t.ID, err)
		}
	}

	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("flush csv: %w", err)
	}
	return nil
}
