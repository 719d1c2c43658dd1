package planner

import (
	"context"
	"path/filepath"

	"github.com/sourcegraph/conc/iter"
	"github.com/spf13/afero"

	"github.com/assetsync/assetsync/internal/checksum"
	"github.com/assetsync/assetsync/internal/hashindex"
	"github.com/assetsync/assetsync/internal/manifest"
)

// Options controls a Build.
type Options struct {
	// Policy decides which stale assets are text-like.
	Policy Policy
	// Verify rehashes local files instead of trusting the cache. With Verify
	// an absent cache does not schedule every record: present files are
	// rehashed and only those that differ from the manifest are outdated.
	Verify bool
	// Workers bounds how many records are evaluated at once. Values below 1
	// mean 1.
	Workers int
}

// decision is the per-record outcome, reduced into a Plan by Build.
type decision struct {
	entry    Entry
	schedule bool
	force    bool
	err      error
}

// Build diffs m against the tree at root and the cache idx. A nil idx means
// the cache was absent. Build only reads the filesystem; the same inputs
// always produce the same plan. Records not yet evaluated when ctx is done
// are skipped and Build returns ctx.Err() with no plan.
func Build(ctx context.Context, fsys afero.Fs, m *manifest.Manifest, idx *hashindex.Index, root string, opts Options) (*Plan, error) {
	records := m.Records()
	workers := opts.Workers
	if workers < 1 {
		workers = 1
	}

	mapper := iter.Mapper[manifest.Record, decision]{MaxGoroutines: workers}
	decisions := mapper.Map(records, func(r *manifest.Record) decision {
		if ctx.Err() != nil {
			return decision{}
		}
		return evaluate(fsys, *r, idx, root, opts)
	})
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	plan := newPlan()
	for _, d := range decisions {
		if d.err != nil {
			plan.Failures[d.entry.Record.RelativePath] = d.err
		}
		if !d.schedule {
			continue
		}
		if d.force {
			plan.ForceRefresh[d.entry.Record.RelativePath] = d.entry
		} else {
			plan.Outdated[d.entry.Record.RelativePath] = d.entry
		}
	}
	return plan, nil
}

func evaluate(fsys afero.Fs, r manifest.Record, idx *hashindex.Index, root string, opts Options) decision {
	outdated := func(reason Reason) decision {
		return decision{entry: Entry{Record: r, Reason: reason}, schedule: true}
	}

	if idx == nil && !opts.Verify {
		return outdated(NoIndex)
	}

	local := LocalPath(root, r.RelativePath)
	info, err := fsys.Stat(local)
	if err != nil || info.IsDir() {
		return outdated(Missing)
	}

	var known string
	if opts.Verify {
		sum, err := checksum.File(fsys, local)
		if err != nil {
			d := outdated(RehashFailed)
			d.err = err
			return d
		}
		known = sum
	} else {
		h, ok := idx.Lookup(r.RelativePath)
		if !ok {
			return outdated(Untracked)
		}
		known = h
	}

	if checksum.Equal(known, r.SHA256) {
		return decision{entry: Entry{Record: r}}
	}
	d := outdated(Stale)
	d.force = opts.Policy.TextLike(r.RelativePath)
	return d
}

// LocalPath maps a manifest relative path to its location under root.
func LocalPath(root, relativePath string) string {
	return filepath.Join(root, filepath.FromSlash(manifest.NormalizePath(relativePath)))
}
