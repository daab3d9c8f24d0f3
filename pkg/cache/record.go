package cache

import "time"

// Record is the last successful upstream response for one Key.
type Record struct {
	// Validator is the ETag sent back as If-None-Match (may be empty)
	Validator string

	// Body is the decoded JSON payload. It is shared by every reader of the
	// record and must be treated as read-only.
	Body map[string]any

	// FetchedAt is when the record was last refreshed from upstream
	FetchedAt time.Time
}

// HasValidator reports whether a conditional request can be made for the record.
func (r Record) HasValidator() bool {
	return r.Validator != ""
}

// Age returns how long ago the record was refreshed.
func (r Record) Age() time.Duration {
	return time.Since(r.FetchedAt)
}
