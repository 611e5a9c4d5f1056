package collector

import (
	"context"
	"time"

	"MarketLens/internal/model"
)

// Fetcher defines the interface for fetching market data. Every failure is
// reported as a *model.FetchError.
type Fetcher interface {
	FetchSnapshot(ctx context.Context, symbol string) (*model.Snapshot, error)
	FetchHistory(ctx context.Context, symbol string, start, end time.Time) (*model.PriceSeries, error)
	// FetchOptionChain fetches the chain for one expiration; the zero time
	// selects the nearest listed expiration.
	FetchOptionChain(ctx context.Context, symbol string, expiration time.Time) (*model.OptionChain, error)
	Name() string
}

// BatchFetcher is implemented by fetchers that can quote several symbols in
// one upstream call. The error map carries per-symbol failures; symbols in
// neither map were not found. The call error is reserved for failures that
// leave no symbol usable, such as transport or envelope errors.
type BatchFetcher interface {
	Fetcher
	FetchSnapshots(ctx context.Context, symbols []string) (map[string]*model.Snapshot, map[string]error, error)
}
