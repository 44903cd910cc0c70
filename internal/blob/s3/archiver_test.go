package s3blob

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/krxlab/stockcore/internal/domain"
)

// fakeWriter captures the last uploaded object.
type fakeWriter struct {
	path        string
	data        []byte
	contentType string
	calls       int
}

func (w *fakeWriter) Put(_ context.Context, path string, data []byte, contentType string) error {
	w.path = path
	w.data = data
	w.contentType = contentType
	w.calls++
	return nil
}

// fakeTradeStore returns a fixed trade list for any cutoff.
type fakeTradeStore struct {
	trades []domain.Trade
}

func (s *fakeTradeStore) ListBefore(context.Context, time.Time) ([]domain.Trade, error) {
	return s.trades, nil
}

func sampleTrade(price string) domain.Trade {
	return domain.Trade{
		ID:          uuid.NewString(),
		Symbol:      "005930",
		BuyOrderID:  uuid.NewString(),
		SellOrderID: uuid.NewString(),
		Quantity:    decimal.NewFromInt(10),
		Price:       decimal.RequireFromString(price),
		ExecutedAt:  time.Date(2026, 7, 2, 9, 30, 0, 0, time.UTC),
	}
}

func TestArchiveTradesUploadsJSONL(t *testing.T) {
	writer := &fakeWriter{}
	store := &fakeTradeStore{trades: []domain.Trade{sampleTrade("70000"), sampleTrade("70100")}}
	archiver := NewArchiver(writer, store)

	cutoff := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	count, err := archiver.ArchiveTrades(context.Background(), cutoff)
	require.NoError(t, err)
	assert.Equal(t, int64(2), count)

	assert.Equal(t, "archive/trades/2026-08.jsonl", writer.path)
	assert.Equal(t, "application/x-ndjson", writer.contentType)

	// One JSON object per line.
	scanner := bufio.NewScanner(bytes.NewReader(writer.data))
	var lines int
	for scanner.Scan() {
		var trade domain.Trade
		require.NoError(t, json.Unmarshal(scanner.Bytes(), &trade))
		assert.Equal(t, "005930", trade.Symbol)
		lines++
	}
	require.NoError(t, scanner.Err())
	assert.Equal(t, 2, lines)
}

func TestArchiveTradesSkipsUploadWhenEmpty(t *testing.T) {
	writer := &fakeWriter{}
	archiver := NewArchiver(writer, &fakeTradeStore{})

	count, err := archiver.ArchiveTrades(context.Background(), time.Now())
	require.NoError(t, err)
	assert.Zero(t, count)
	assert.Zero(t, writer.calls, "no object is written for an empty batch")
}
