package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/sourcegraph/conc/pool"
	"github.com/spf13/afero"
	"golang.org/x/time/rate"

	"github.com/assetsync/assetsync/internal/checksum"
	"github.com/assetsync/assetsync/internal/events"
	"github.com/assetsync/assetsync/internal/planner"
	"github.com/assetsync/assetsync/internal/platform"
)

const (
	// DefaultConcurrency is the number of transfers open at once.
	DefaultConcurrency = 5

	copyBufferSize = 32 * 1024
)

var (
	// ErrIntegrity marks a non-text-like download whose hash did not match.
	ErrIntegrity = errors.New("checksum mismatch")
	// ErrTransfer marks a failed or rejected HTTP transfer.
	ErrTransfer = errors.New("transfer failed")
	// ErrStagingConflict marks a unit whose staging file would land on
	// another asset's destination, or whose destination is another unit's
	// staging file.
	ErrStagingConflict = errors.New("staging path collides with another asset")
)

// Doer is the HTTP capability the executor needs.
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Status is the outcome of one unit.
type Status int

const (
	Committed Status = iota
	CommittedWithWarning
	Failed
	Skipped
)

func (s Status) String() string {
	switch s {
	case Committed:
		return "committed"
	case CommittedWithWarning:
		return "committed-with-warning"
	case Failed:
		return "failed"
	case Skipped:
		return "skipped"
	default:
		return "unknown"
	}
}

// Result reports what happened to one unit.
type Result struct {
	Unit    Unit
	Status  Status
	Err     error
	Bytes   int64
	Warning string
}

// Committed reports whether the download was moved into place.
func (r Result) Committed() bool {
	return r.Status == Committed || r.Status == CommittedWithWarning
}

// Options configures an Executor.
type Options struct {
	// Concurrency bounds simultaneous transfers. Values below 1 mean
	// DefaultConcurrency.
	Concurrency int
	// Policy decides which assets are text-like.
	Policy planner.Policy
	// KeepFailed leaves the staging file of a failed integrity check on disk.
	KeepFailed bool
	// BytesPerSecond caps aggregate download throughput. Zero is unlimited.
	BytesPerSecond int64
	UserAgent      string
	Sink           events.Sink
	Session        string
}

// Executor runs download units against an HTTP capability and a filesystem.
type Executor struct {
	client  Doer
	fs      afero.Fs
	opts    Options
	limiter *rate.Limiter
	emit    events.Emitter
}

// New returns an Executor. A nil fs means the OS filesystem.
func New(client Doer, fsys afero.Fs, opts Options) *Executor {
	if fsys == nil {
		fsys = afero.NewOsFs()
	}
	if opts.Concurrency < 1 {
		opts.Concurrency = DefaultConcurrency
	}
	return &Executor{
		client:  client,
		fs:      fsys,
		opts:    opts,
		limiter: newLimiter(opts.BytesPerSecond),
		emit:    events.Emitter{Sink: opts.Sink, Session: opts.Session},
	}
}

// Execute downloads every asset in plan into root, fetching each from
// baseURL plus its relative path. It returns one Result per distinct asset,
// sorted by relative path. A failed unit never stops the others.
func (e *Executor) Execute(ctx context.Context, plan *planner.Plan, root, baseURL string) []Result {
	var units []Unit
	var results []Result
	for _, r := range plan.Assets() {
		u, err := NewUnit(r, root, baseURL, e.opts.Policy)
		if err != nil {
			e.emit.Error("%s: %v", displayName(r.Name, r.RelativePath), err)
			results = append(results, Result{Unit: Unit{Record: r}, Status: Failed, Err: err})
			continue
		}
		units = append(units, u)
	}
	results = append(results, e.Run(ctx, units)...)
	sortResults(results)
	return results
}

// Run transfers units with at most Options.Concurrency in flight. Units
// whose staging and destination paths overlap fail with ErrStagingConflict
// before any transfer starts, leaving both paths untouched.
func (e *Executor) Run(ctx context.Context, units []Unit) []Result {
	conflicts := stagingConflicts(units)
	p := pool.NewWithResults[Result]().WithMaxGoroutines(e.opts.Concurrency)
	for i, u := range units {
		if other, ok := conflicts[i]; ok {
			err := fmt.Errorf("%w: %s", ErrStagingConflict, other)
			e.emit.Error("%s: %v", displayName(u.Record.Name, u.Record.RelativePath), err)
			p.Go(func() Result {
				return Result{Unit: u, Status: Failed, Err: err}
			})
			continue
		}
		p.Go(func() Result {
			if err := ctx.Err(); err != nil {
				return Result{Unit: u, Status: Skipped, Err: err}
			}
			return e.transfer(ctx, u)
		})
	}
	results := p.Wait()
	sortResults(results)
	return results
}

func (e *Executor) transfer(ctx context.Context, u Unit) Result {
	name := displayName(u.Record.Name, u.Record.RelativePath)
	e.emit.Info("downloading %s", name)

	fail := func(err error) Result {
		e.emit.Error("%s: %v", name, err)
		return Result{Unit: u, Status: Failed, Err: err}
	}

	if err := platform.EnsureDir(e.fs, filepath.Dir(u.Destination)); err != nil {
		return fail(err)
	}

	sum, n, err := e.download(ctx, u)
	if err != nil {
		_ = platform.RemoveIfExists(e.fs, u.Staging)
		return fail(err)
	}

	status := Committed
	var warning string
	if !checksum.Equal(sum, u.Record.SHA256) {
		if !u.TextLike {
			if !e.opts.KeepFailed {
				_ = platform.RemoveIfExists(e.fs, u.Staging)
			}
			r := fail(fmt.Errorf("%w: expected %s, got %s", ErrIntegrity, u.Record.SHA256, sum))
			r.Bytes = n
			return r
		}
		warning = fmt.Sprintf("checksum mismatch for %s (expected %s, got %s), keeping download", name, u.Record.SHA256, sum)
		e.emit.Warn("%s", warning)
		status = CommittedWithWarning
	}

	if err := platform.Commit(e.fs, u.Staging, u.Destination); err != nil {
		_ = platform.RemoveIfExists(e.fs, u.Staging)
		r := fail(err)
		r.Bytes = n
		return r
	}
	return Result{Unit: u, Status: status, Bytes: n, Warning: warning}
}

// download streams u.URL into u.Staging and returns the hex SHA-256 and
// size of what was written.
func (e *Executor) download(ctx context.Context, u Unit) (string, int64, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.URL, nil)
	if err != nil {
		return "", 0, fmt.Errorf("%w: creating request: %w", ErrTransfer, err)
	}
	if e.opts.UserAgent != "" {
		req.Header.Set("User-Agent", e.opts.UserAgent)
	}

	resp, err := e.client.Do(req)
	if err != nil {
		return "", 0, fmt.Errorf("%w: %w", ErrTransfer, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", 0, fmt.Errorf("%w: %s returned status %d", ErrTransfer, u.URL, resp.StatusCode)
	}

	f, err := e.fs.OpenFile(u.Staging, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, platform.FileMode)
	if err != nil {
		return "", 0, fmt.Errorf("creating staging file: %w", err)
	}

	hasher := checksum.NewWriter()
	buf := make([]byte, copyBufferSize)
	_, copyErr := io.CopyBuffer(io.MultiWriter(f, hasher), throttle(ctx, resp.Body, e.limiter), buf)
	closeErr := f.Close()
	if copyErr != nil {
		return "", hasher.Size(), fmt.Errorf("%w: reading %s: %w", ErrTransfer, u.URL, copyErr)
	}
	if closeErr != nil {
		return "", hasher.Size(), fmt.Errorf("writing staging file: %w", closeErr)
	}
	return hasher.Sum(), hasher.Size(), nil
}

// stagingConflicts maps the index of every unit that shares a path with
// another unit's staging file to the relative path it collides with.
// Paths compare case-insensitively so case-folding filesystems are covered.
func stagingConflicts(units []Unit) map[int]string {
	dest := make(map[string]int, len(units))
	for i, u := range units {
		dest[strings.ToLower(u.Destination)] = i
	}
	conflicts := make(map[int]string)
	for i, u := range units {
		j, ok := dest[strings.ToLower(u.Staging)]
		if !ok || j == i {
			continue
		}
		conflicts[i] = units[j].Record.RelativePath
		conflicts[j] = u.Record.RelativePath
	}
	return conflicts
}

func displayName(name, relativePath string) string {
	if name != "" {
		return name
	}
	return relativePath
}

func sortResults(results []Result) {
	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Unit.Record.RelativePath < results[j].Unit.Record.RelativePath
	})
}
