package s3blob

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/alanyoungcy/flashscan/internal/domain"
)

// Pruner removes archived rows from the primary store once the upload has
// succeeded. Both Postgres stores satisfy it through DeleteBefore.
type Pruner interface {
	DeleteBefore(ctx context.Context, before time.Time) (int64, error)
}

// Archiver moves aged flash records and opportunities out of the primary
// store into object storage as JSONL files partitioned by month. Rows are
// deleted from the store only after their archive object is uploaded.
type Archiver struct {
	writer        domain.BlobWriter
	flashRecords  domain.FlashRecordStore
	flashPrune    Pruner
	opportunities domain.OpportunityStore
	oppPrune      Pruner
	logger        *slog.Logger
}

// NewArchiver creates an Archiver. A nil Pruner disables deletion for that
// record kind; the rows are then archived but retained.
func NewArchiver(
	writer domain.BlobWriter,
	flashRecords domain.FlashRecordStore,
	flashPrune Pruner,
	opportunities domain.OpportunityStore,
	oppPrune Pruner,
	logger *slog.Logger,
) *Archiver {
	return &Archiver{
		writer:        writer,
		flashRecords:  flashRecords,
		flashPrune:    flashPrune,
		opportunities: opportunities,
		oppPrune:      oppPrune,
		logger:        logger.With(slog.String("component", "archiver")),
	}
}

// ArchiveFlashRecords uploads every flash record detected before the cutoff
// and prunes the archived rows. It returns the number of archived records.
func (a *Archiver) ArchiveFlashRecords(ctx context.Context, before time.Time) (int64, error) {
	recs, err := a.flashRecords.ListBefore(ctx, before)
	if err != nil {
		return 0, fmt.Errorf("s3blob: archive flash query: %w", err)
	}
	if len(recs) == 0 {
		return 0, nil
	}

	buf, err := marshalJSONL(recs)
	if err != nil {
		return 0, fmt.Errorf("s3blob: archive flash marshal: %w", err)
	}

	path := archivePath("flash_history", before)
	if err := a.writer.Put(ctx, path, buf, "application/x-ndjson"); err != nil {
		return 0, fmt.Errorf("s3blob: archive flash upload: %w", err)
	}

	a.prune(ctx, a.flashPrune, "flash_history", before)
	a.logger.Info("flash records archived",
		slog.String("path", path),
		slog.Int("count", len(recs)),
	)
	return int64(len(recs)), nil
}

// ArchiveOpportunities uploads every opportunity detected before the cutoff
// and prunes the archived rows. It returns the number of archived records.
func (a *Archiver) ArchiveOpportunities(ctx context.Context, before time.Time) (int64, error) {
	opps, err := a.opportunities.ListBefore(ctx, before)
	if err != nil {
		return 0, fmt.Errorf("s3blob: archive opportunities query: %w", err)
	}
	if len(opps) == 0 {
		return 0, nil
	}

	buf, err := marshalJSONL(opps)
	if err != nil {
		return 0, fmt.Errorf("s3blob: archive opportunities marshal: %w", err)
	}

	path := archivePath("opportunities", before)
	if err := a.writer.Put(ctx, path, buf, "application/x-ndjson"); err != nil {
		return 0, fmt.Errorf("s3blob: archive opportunities upload: %w", err)
	}

	a.prune(ctx, a.oppPrune, "opportunities", before)
	a.logger.Info("opportunities archived",
		slog.String("path", path),
		slog.Int("count", len(opps)),
	)
	return int64(len(opps)), nil
}

// Run archives both record kinds on the given interval until the context is
// cancelled, keeping retention's worth of recent rows in the primary store.
func (a *Archiver) Run(ctx context.Context, interval, retention time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			cutoff := time.Now().UTC().Add(-retention)
			if _, err := a.ArchiveFlashRecords(ctx, cutoff); err != nil {
				a.logger.Error("flash archive run failed", slog.String("error", err.Error()))
			}
			if _, err := a.ArchiveOpportunities(ctx, cutoff); err != nil {
				a.logger.Error("opportunity archive run failed", slog.String("error", err.Error()))
			}
		}
	}
}

func (a *Archiver) prune(ctx context.Context, p Pruner, kind string, before time.Time) {
	if p == nil {
		return
	}
	n, err := p.DeleteBefore(ctx, before)
	if err != nil {
		a.logger.Warn("archive prune failed",
			slog.String("kind", kind),
			slog.String("error", err.Error()),
		)
		return
	}
	a.logger.Debug("archived rows pruned",
		slog.String("kind", kind),
		slog.Int64("rows", n),
	)
}

// archivePath builds the object key for an archive file, partitioned by the
// year-month of the cutoff.
func archivePath(kind string, before time.Time) string {
	return fmt.Sprintf("archive/%s/%s.jsonl", kind, before.Format("2006-01"))
}

// marshalJSONL serialises records as newline-delimited JSON.
func marshalJSONL[T any](records []T) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)

	for i, rec := range records {
		if err := enc.Encode(rec); err != nil {
			return nil, fmt.Errorf("jsonl encode record %d: %w", i, err)
		}
	}
	return buf.Bytes(), nil
}
