package s3blob

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/krxlab/stockcore/internal/domain"
)

// TradeArchiveStore is the narrow read access the archiver needs from the
// trade store. The Postgres store satisfies it through ListBefore.
type TradeArchiveStore interface {
	ListBefore(ctx context.Context, before time.Time) ([]domain.Trade, error)
}

// ArchiveImpl implements domain.TradeArchiver by querying the trade store
// for aged records, serializing them to JSONL, and uploading the result to
// S3. Deletion of the archived rows from the primary store is deliberately
// a separate, explicit step executed after the archive has been verified.
type ArchiveImpl struct {
	writer domain.BlobWriter
	trades TradeArchiveStore
}

// NewArchiver creates a new ArchiveImpl.
func NewArchiver(writer domain.BlobWriter, trades TradeArchiveStore) *ArchiveImpl {
	return &ArchiveImpl{
		writer: writer,
		trades: trades,
	}
}

// ArchiveTrades queries all trades executed before the cutoff, serializes
// them to JSONL, and uploads the file to S3 at
// archive/trades/YYYY-MM.jsonl. It returns the count of archived records.
func (a *ArchiveImpl) ArchiveTrades(ctx context.Context, before time.Time) (int64, error) {
	trades, err := a.trades.ListBefore(ctx, before)
	if err != nil {
		return 0, fmt.Errorf("s3blob: archive trades query: %w", err)
	}
	if len(trades) == 0 {
		return 0, nil
	}

	buf, err := marshalJSONL(trades)
	if err != nil {
		return 0, fmt.Errorf("s3blob: archive trades marshal: %w", err)
	}

	path := archivePath("trades", before)
	if err := a.writer.Put(ctx, path, buf, "application/x-ndjson"); err != nil {
		return 0, fmt.Errorf("s3blob: archive trades upload: %w", err)
	}

	return int64(len(trades)), nil
}

// marshalJSONL serializes a slice of records as newline-delimited JSON.
func marshalJSONL[T any](records []T) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	for _, rec := range records {
		if err := enc.Encode(rec); err != nil {
			return nil, err
		}
	}
	return buf.Bytes(), nil
}

// archivePath builds the S3 object key for an archive batch, bucketed by
// the cutoff month.
func archivePath(kind string, before time.Time) string {
	return fmt.Sprintf("archive/%s/%s.jsonl", kind, before.UTC().Format("2006-01"))
}
