// Package recorder keeps a history of resolve batches, upstream failures and
// options reports for later analysis. Cache contents are never persisted.
package recorder

import "time"

// ResolveEvent summarises one orchestrated fetch batch.
type ResolveEvent struct {
	BatchID   string
	Kind      string // "snapshot" or "history"
	Requested int
	Hits      int
	Misses    int
	Failures  int
	Elapsed   time.Duration
	At        time.Time
}

// FetchFailure records one symbol that could not be fetched.
type FetchFailure struct {
	BatchID string
	Symbol  string
	Kind    string // model.FetchErrorKind string form
	Message string
	At      time.Time
}

// OptionsEvent records the headline numbers of an options report. Nil
// metrics could not be computed.
type OptionsEvent struct {
	Symbol     string
	Expiration time.Time
	Spot       float64
	PutCallOI  *float64
	PutCallVol *float64
	MaxPain    *float64
	ATMIV      *float64
	Skew       *float64
	TermShape  string
	Unusual    int
	Issues     int
	At         time.Time
}

// Recorder persists historical data for analysis.
type Recorder interface {
	RecordResolve(evt *ResolveEvent) error
	RecordFetchFailure(evt *FetchFailure) error
	RecordOptions(evt *OptionsEvent) error
	// FailureCounts returns failures per symbol recorded at or after since.
	FailureCounts(since time.Time) (map[string]int, error)
	Close() error
}
