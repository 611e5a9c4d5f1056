package recorder

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func openTemp(t *testing.T) *SQLiteRecorder {
	t.Helper()
	r, err := NewSQLiteRecorder(filepath.Join(t.TempDir(), "lens.db"), zaptest.NewLogger(t))
	require.NoError(t, err)
	t.Cleanup(func() { _ = r.Close() })
	return r
}

func TestSQLiteRecorder_Resolve(t *testing.T) {
	r := openTemp(t)
	now := time.Date(2026, time.October, 19, 14, 0, 0, 0, time.UTC)

	require.NoError(t, r.RecordResolve(&ResolveEvent{
		BatchID: "b1", Kind: "snapshot", Requested: 3, Hits: 1, Misses: 2, Failures: 1,
		Elapsed: 1500 * time.Millisecond, At: now,
	}))

	var hits, elapsed int
	require.NoError(t, r.db.QueryRow(`SELECT hits, elapsed_ms FROM resolve_batches WHERE batch_id = 'b1'`).
		Scan(&hits, &elapsed))
	assert.Equal(t, 1, hits)
	assert.Equal(t, 1500, elapsed)
}

func TestSQLiteRecorder_FailureCounts(t *testing.T) {
	r := openTemp(t)
	now := time.Date(2026, time.October, 19, 14, 0, 0, 0, time.UTC)

	for _, f := range []FetchFailure{
		{BatchID: "b1", Symbol: "MSFT", Kind: "timeout", At: now.Add(-2 * time.Hour)},
		{BatchID: "b2", Symbol: "MSFT", Kind: "rate_limited", At: now},
		{BatchID: "b2", Symbol: "ZZZZ", Kind: "not_found", At: now},
	} {
		require.NoError(t, r.RecordFetchFailure(&f))
	}

	counts, err := r.FailureCounts(now.Add(-time.Hour))
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"MSFT": 1, "ZZZZ": 1}, counts)

	counts, err = r.FailureCounts(time.Time{})
	require.NoError(t, err)
	assert.Equal(t, 2, counts["MSFT"])
}

func TestSQLiteRecorder_OptionsNullableMetrics(t *testing.T) {
	r := openTemp(t)
	pain := 100.0

	require.NoError(t, r.RecordOptions(&OptionsEvent{
		Symbol:     "AAPL",
		Expiration: time.Date(2026, time.October, 23, 0, 0, 0, 0, time.UTC),
		Spot:       101.5,
		MaxPain:    &pain,
		TermShape:  "contango",
		Unusual:    2,
	}))

	var maxPain, pcr *float64
	require.NoError(t, r.db.QueryRow(`SELECT max_pain, put_call_oi FROM options_reports WHERE symbol = 'AAPL'`).
		Scan(&maxPain, &pcr))
	require.NotNil(t, maxPain)
	assert.Equal(t, 100.0, *maxPain)
	assert.Nil(t, pcr)
}

func TestNoopRecorder(t *testing.T) {
	var r Recorder = NewNoopRecorder()
	assert.NoError(t, r.RecordResolve(&ResolveEvent{}))
	counts, err := r.FailureCounts(time.Now())
	assert.NoError(t, err)
	assert.Empty(t, counts)
	assert.NoError(t, r.Close())
}
