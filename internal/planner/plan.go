package planner

import (
	"sort"

	"github.com/assetsync/assetsync/internal/manifest"
)

// Reason records why an asset was scheduled.
type Reason int

const (
	// NoIndex: the local hash cache was absent, so nothing can be trusted.
	NoIndex Reason = iota + 1
	// Missing: the file does not exist in the local tree.
	Missing
	// Untracked: the file exists but the cache has no entry for it.
	Untracked
	// Stale: the known hash differs from the manifest hash.
	Stale
	// RehashFailed: verification was requested and the file could not be read.
	RehashFailed
)

func (r Reason) String() string {
	switch r {
	case NoIndex:
		return "no-index"
	case Missing:
		return "missing"
	case Untracked:
		return "untracked"
	case Stale:
		return "stale"
	case RehashFailed:
		return "rehash-failed"
	default:
		return "unknown"
	}
}

// Entry is one scheduled asset.
type Entry struct {
	Record manifest.Record
	Reason Reason
}

// Plan is the outcome of a diff: two disjoint sets keyed by relative path.
type Plan struct {
	// ForceRefresh holds text-like assets whose hash changed.
	ForceRefresh map[string]Entry
	// Outdated holds everything else that must be downloaded.
	Outdated map[string]Entry
	// Failures holds rehash errors by relative path.
	Failures map[string]error
}

func newPlan() *Plan {
	return &Plan{
		ForceRefresh: make(map[string]Entry),
		Outdated:     make(map[string]Entry),
		Failures:     make(map[string]error),
	}
}

// Len returns the number of distinct assets to download.
func (p *Plan) Len() int {
	if p == nil {
		return 0
	}
	n := len(p.Outdated)
	for path := range p.ForceRefresh {
		if _, dup := p.Outdated[path]; !dup {
			n++
		}
	}
	return n
}

// Empty reports whether there is nothing to download.
func (p *Plan) Empty() bool {
	return p.Len() == 0
}

// Entries returns the union of both sets, one entry per path, sorted by path.
// A path present in both sets is reported from ForceRefresh.
func (p *Plan) Entries() []Entry {
	if p == nil {
		return nil
	}
	merged := make(map[string]Entry, len(p.ForceRefresh)+len(p.Outdated))
	for path, e := range p.Outdated {
		merged[path] = e
	}
	for path, e := range p.ForceRefresh {
		merged[path] = e
	}

	entries := make([]Entry, 0, len(merged))
	for _, e := range merged {
		entries = append(entries, e)
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Record.RelativePath < entries[j].Record.RelativePath
	})
	return entries
}

// Assets returns the records to download, sorted by path.
func (p *Plan) Assets() []manifest.Record {
	entries := p.Entries()
	if entries == nil {
		return nil
	}
	records := make([]manifest.Record, len(entries))
	for i, e := range entries {
		records[i] = e.Record
	}
	return records
}

// Names returns the display name of each asset to download, sorted by path.
// Records without a name fall back to their relative path.
func (p *Plan) Names() []string {
	entries := p.Entries()
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		name := e.Record.Name
		if name == "" {
			name = e.Record.RelativePath
		}
		names = append(names, name)
	}
	return names
}
