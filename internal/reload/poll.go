package reload

// TimestampTracker mirrors the decision the injected poll clients make
// from the manifest's dev timestamp: the first observation only sets the
// baseline, and each later change fires exactly once. The dev command uses
// it to report when a rebuild has published a new reload signal.
type TimestampTracker struct {
	baseline int64
	seeded   bool
}

// Observe records a timestamp and reports whether it should trigger a
// reload.
func (t *TimestampTracker) Observe(ts int64) bool {
	if !t.seeded {
		t.baseline = ts
		t.seeded = true
		return false
	}
	if ts == t.baseline {
		return false
	}
	t.baseline = ts
	return true
}
