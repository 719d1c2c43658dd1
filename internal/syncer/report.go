package syncer

import (
	"time"

	"github.com/assetsync/assetsync/internal/fetch"
)

// Report summarizes one Apply.
type Report struct {
	SessionID string
	// Planned is the number of distinct assets scheduled.
	Planned int
	// Committed holds every unit moved into place, warnings included.
	Committed []fetch.Result
	// Warnings holds the committed units whose checksum did not match.
	Warnings []fetch.Result
	Failed   []fetch.Result
	// Skipped holds units never started because the context ended.
	Skipped  []fetch.Result
	Bytes    int64
	Duration time.Duration
}

// OK reports whether every planned asset was committed.
func (r *Report) OK() bool {
	return r != nil && len(r.Failed) == 0 && len(r.Skipped) == 0
}

func newReport(session string, planned int, results []fetch.Result, elapsed time.Duration) *Report {
	rep := &Report{SessionID: session, Planned: planned, Duration: elapsed}
	for _, r := range results {
		rep.Bytes += r.Bytes
		switch r.Status {
		case fetch.Committed:
			rep.Committed = append(rep.Committed, r)
		case fetch.CommittedWithWarning:
			rep.Committed = append(rep.Committed, r)
			rep.Warnings = append(rep.Warnings, r)
		case fetch.Skipped:
			rep.Skipped = append(rep.Skipped, r)
		default:
			rep.Failed = append(rep.Failed, r)
		}
	}
	return rep
}
