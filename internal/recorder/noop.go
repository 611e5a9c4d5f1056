package recorder

import "time"

// NoopRecorder is a no-op implementation used when SQLite is not configured.
type NoopRecorder struct{}

func NewNoopRecorder() *NoopRecorder { return &NoopRecorder{} }

func (n *NoopRecorder) RecordResolve(_ *ResolveEvent) error      { return nil }
func (n *NoopRecorder) RecordFetchFailure(_ *FetchFailure) error { return nil }
func (n *NoopRecorder) RecordOptions(_ *OptionsEvent) error      { return nil }
func (n *NoopRecorder) FailureCounts(_ time.Time) (map[string]int, error) {
	return map[string]int{}, nil
}
func (n *NoopRecorder) Close() error { return nil }
