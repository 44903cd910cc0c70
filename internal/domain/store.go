package domain

import (
	"context"
	"time"
)

// TradeStore persists executed trades.
type TradeStore interface {
	Insert(ctx context.Context, trade Trade) error
	FindAll(ctx context.Context) ([]Trade, error)
	// ListBefore returns all trades executed strictly before the cutoff,
	// used by the cold-storage archiver.
	ListBefore(ctx context.Context, before time.Time) ([]Trade, error)
	GetLastTimestamp(ctx context.Context) (time.Time, error)
}

// BlobWriter uploads a single object to cold storage.
type BlobWriter interface {
	Put(ctx context.Context, path string, data []byte, contentType string) error
}

// TradeArchiver exports aged trades to cold storage.
type TradeArchiver interface {
	ArchiveTrades(ctx context.Context, before time.Time) (int64, error)
}
