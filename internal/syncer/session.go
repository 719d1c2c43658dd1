package syncer

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"
	"github.com/spf13/afero"

	"github.com/assetsync/assetsync/internal/events"
	"github.com/assetsync/assetsync/internal/fetch"
	"github.com/assetsync/assetsync/internal/hashindex"
	"github.com/assetsync/assetsync/internal/manifest"
	"github.com/assetsync/assetsync/internal/planner"
)

// ErrBusy is returned when Check or Apply is called while another one is
// still running on the same Session.
var ErrBusy = errors.New("sync session busy")

// Options configures a Session.
type Options struct {
	// Root is the local tree to keep in sync.
	Root string
	// BaseURL is prefixed to each relative path to form its download URL.
	BaseURL string
	// Client performs HTTP requests. Nil means http.DefaultClient.
	Client fetch.Doer
	// FS is the filesystem Root lives on. Nil means the OS filesystem.
	FS   afero.Fs
	Sink events.Sink

	Concurrency    int
	Policy         planner.Policy
	Verify         bool
	HashWorkers    int
	KeepFailed     bool
	BytesPerSecond int64
	UserAgent      string
}

type state int

const (
	idle state = iota
	checking
	applying
)

// Session is a long-lived sync context for one root.
type Session struct {
	opts  Options
	id    string
	fs    afero.Fs
	emit  events.Emitter
	index *hashindex.Index

	mu       sync.Mutex
	state    state
	manifest *manifest.Manifest
	plan     *planner.Plan
}

// New creates a Session and loads the local hash cache from Root once.
// A missing or unreadable cache is reported as a warning and every asset
// will be treated as outdated.
func New(opts Options) *Session {
	if opts.FS == nil {
		opts.FS = afero.NewOsFs()
	}
	if opts.Client == nil {
		opts.Client = http.DefaultClient
	}

	s := &Session{
		opts: opts,
		id:   uuid.NewString(),
		fs:   opts.FS,
	}
	s.emit = events.Emitter{Sink: opts.Sink, Session: s.id}

	idx, err := hashindex.Load(s.fs, opts.Root)
	if err != nil {
		s.emit.Warn("hash cache unavailable, will resync everything: %v", err)
	} else {
		s.emit.Info("loaded %d cached hashes", idx.Len())
	}
	s.index = idx
	return s
}

// ID returns the session id attached to every event.
func (s *Session) ID() string { return s.id }

// Index returns the hash cache loaded at construction, nil if absent.
func (s *Session) Index() *hashindex.Index { return s.index }

// SetManifest replaces the manifest and drops any cached plan.
func (s *Session) SetManifest(m *manifest.Manifest) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.manifest = m
	s.plan = nil
}

// FetchManifest downloads, decodes and validates the manifest at url. On
// failure the session is left without a manifest.
func (s *Session) FetchManifest(ctx context.Context, url string) error {
	s.emit.Info("fetching manifest %s", url)
	m, err := manifest.Fetch(ctx, s.opts.Client, url, s.opts.UserAgent)
	if err != nil {
		s.emit.Error("%v", err)
		s.SetManifest(nil)
		return err
	}
	s.emit.Info("manifest lists %d assets", m.Len())
	s.SetManifest(m)
	return nil
}

// Check diffs the manifest against the local tree and returns the plan.
// The plan is kept for a following Apply.
func (s *Session) Check(ctx context.Context) (*planner.Plan, error) {
	m, err := s.begin(checking)
	if err != nil {
		return nil, err
	}
	defer s.end()

	plan, err := s.build(ctx, m)
	if err != nil {
		return nil, err
	}
	s.emit.Info("%s", checkSummary(plan))

	s.mu.Lock()
	s.plan = plan
	s.mu.Unlock()
	return plan, nil
}

// Apply downloads every outdated asset. It reuses the plan of an immediately
// preceding Check and plans anew otherwise. Individual download failures are
// listed in the Report rather than returned as an error.
func (s *Session) Apply(ctx context.Context) (*Report, error) {
	m, err := s.begin(applying)
	if err != nil {
		return nil, err
	}
	defer s.end()

	s.mu.Lock()
	plan := s.plan
	s.plan = nil
	s.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	start := time.Now()
	if plan == nil {
		if plan, err = s.build(ctx, m); err != nil {
			return nil, err
		}
	}

	var results []fetch.Result
	if plan.Empty() {
		s.emit.Info("no updates")
	} else {
		s.emit.Info("%s", applySummary(plan))
		ex := fetch.New(s.opts.Client, s.fs, fetch.Options{
			Concurrency:    s.opts.Concurrency,
			Policy:         s.opts.Policy,
			KeepFailed:     s.opts.KeepFailed,
			BytesPerSecond: s.opts.BytesPerSecond,
			UserAgent:      s.opts.UserAgent,
			Sink:           s.opts.Sink,
			Session:        s.id,
		})
		results = ex.Execute(ctx, plan, s.opts.Root, s.opts.BaseURL)
	}

	rep := newReport(s.id, plan.Len(), results, time.Since(start))
	if len(rep.Failed) > 0 {
		s.emit.Warn("%s", printer.Sprintf("%d of %d assets failed to update", len(rep.Failed), rep.Planned))
	}
	if len(rep.Skipped) > 0 {
		s.emit.Warn("%s", printer.Sprintf("%d assets skipped: %v", len(rep.Skipped), ctx.Err()))
	}
	s.emit.Info("%s", printer.Sprintf("processing complete: %d updated, %s downloaded in %s",
		len(rep.Committed), humanize.Bytes(uint64(rep.Bytes)), rep.Duration.Round(time.Millisecond)))

	if err := ctx.Err(); err != nil {
		return rep, err
	}
	return rep, nil
}

// build plans against m and reports rehash failures.
func (s *Session) build(ctx context.Context, m *manifest.Manifest) (*planner.Plan, error) {
	s.emit.Info("checking for updates")
	plan, err := planner.Build(ctx, s.fs, m, s.index, s.opts.Root, planner.Options{
		Policy:  s.opts.Policy,
		Verify:  s.opts.Verify,
		Workers: s.opts.HashWorkers,
	})
	if err != nil {
		s.emit.Warn("planning interrupted: %v", err)
		return nil, err
	}

	paths := make([]string, 0, len(plan.Failures))
	for p := range plan.Failures {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	for _, p := range paths {
		s.emit.Warn("could not hash %s, scheduling download: %v", p, plan.Failures[p])
	}
	return plan, nil
}

// begin moves the session into next and returns the manifest to work on.
func (s *Session) begin(next state) (*manifest.Manifest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != idle {
		return nil, ErrBusy
	}
	if s.manifest.Len() == 0 {
		s.emit.Error("no manifest loaded")
		return nil, fmt.Errorf("%w: no manifest loaded", manifest.ErrManifestUnavailable)
	}
	s.state = next
	return s.manifest, nil
}

func (s *Session) end() {
	s.mu.Lock()
	s.state = idle
	s.mu.Unlock()
}
