package types

// Pair is one (key, metric) entry of an analysis result.
type Pair struct {
	Key   string `json:"key"`
	Count int64  `json:"count"`
}

// Result is the output of one analysis: a named, ordered result set.
// Exactly one of Scalar and Pairs is populated. Ordering carries rank
// semantics; sinks must preserve it when rendering.
type Result struct {
	// Name identifies the analysis (e.g. "status_distribution").
	Name string `json:"name"`

	// Scalar holds a single numeric result (total_count).
	Scalar *int64 `json:"scalar,omitempty"`

	// Pairs holds ordered (key, metric) rows for grouped analyses.
	Pairs []Pair `json:"pairs,omitempty"`
}

// ScalarResult builds a scalar Result.
func ScalarResult(name string, v int64) Result {
	return Result{Name: name, Scalar: &v}
}

// PairsResult builds an ordered result set.
func PairsResult(name string, pairs []Pair) Result {
	return Result{Name: name, Pairs: pairs}
}

// ParseStats is the ingestion diagnostic tally. Malformed rows are never
// silently lost: RowsRead = Parsed + Malformed + InvalidStatus.
type ParseStats struct {
	// RowsRead counts every non-header row read from the source.
	RowsRead int64 `json:"rows_read"`

	// Parsed counts rows that became records.
	Parsed int64 `json:"parsed"`

	// Malformed counts rows rejected for wrong arity.
	Malformed int64 `json:"malformed"`

	// InvalidStatus counts rows rejected for a non-integer status code.
	InvalidStatus int64 `json:"invalid_status"`

	// BadTimestamp counts retained records whose timestamp did not parse.
	BadTimestamp int64 `json:"bad_timestamp"`

	// BadIP counts retained records whose client address did not parse.
	BadIP int64 `json:"bad_ip"`
}

// Rejected returns the number of rows that did not become records.
func (s ParseStats) Rejected() int64 {
	return s.Malformed + s.InvalidStatus
}
