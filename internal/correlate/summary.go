package correlate

// ErrorSummary aggregates one error-event batch. Partial success is
// modeled, not treated as failure: Errors holds per-item failures while
// the counters reflect what did succeed.
type ErrorSummary struct {
	PendingSessionIDs int
	MatchedSessionIDs int
	AddedHostnames    []string
	SkippedExisting   int
	Errors            []string
}

// OK reports whether the whole batch processed without errors.
func (s ErrorSummary) OK() bool {
	return len(s.Errors) == 0
}

// SessionSummary aggregates one session-event batch. Matched counts
// every consumed join, including those whose append later failed.
type SessionSummary struct {
	Matched         int
	Added           int
	AddedHostnames  []string
	SkippedExisting int
	StoredForLater  int
	Errors          []string
}

// OK reports whether the whole batch processed without errors.
func (s SessionSummary) OK() bool {
	return len(s.Errors) == 0
}
