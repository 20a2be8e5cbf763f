// internal/trigger/edge.go
package trigger

// Edge turns a stream of matching/not-matching observations into activity
// edges. The zero value starts out not matching.
type Edge struct {
	matching bool
}

// Observe records an observation and reports the activity to emit, if any.
// Repeated observations of the same state report nothing.
func (e *Edge) Observe(matching bool) (Activity, bool) {
	switch {
	case matching && !e.matching:
		e.matching = true
		return Active, true
	case !matching && e.matching:
		e.matching = false
		return Inactive, true
	default:
		return Inactive, false
	}
}

// Matching reports the last observed state.
func (e *Edge) Matching() bool {
	return e.matching
}
