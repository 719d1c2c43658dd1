package syncer

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/assetsync/assetsync/internal/checksum"
	"github.com/assetsync/assetsync/internal/events"
	"github.com/assetsync/assetsync/internal/fetch"
	"github.com/assetsync/assetsync/internal/hashindex"
	"github.com/assetsync/assetsync/internal/manifest"
	"github.com/assetsync/assetsync/internal/planner"
)

type fixture struct {
	t      *testing.T
	root   string
	bodies map[string]string
	server *httptest.Server
	rec    *events.Recorder

	mu   sync.Mutex
	hits int
}

func newFixture(t *testing.T, bodies map[string]string) *fixture {
	t.Helper()
	f := &fixture{t: t, root: t.TempDir(), bodies: bodies, rec: &events.Recorder{}}
	f.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		f.hits++
		f.mu.Unlock()
		body, ok := f.bodies[strings.TrimPrefix(r.URL.Path, "/builds")]
		if !ok {
			http.NotFound(w, r)
			return
		}
		fmt.Fprint(w, body)
	}))
	t.Cleanup(f.server.Close)
	return f
}

// mark returns a position in the recorded events for since.
func (f *fixture) mark() int {
	return len(f.rec.Events())
}

// since returns the messages at or above min recorded after mark.
func (f *fixture) since(mark int, min events.Level) []string {
	var out []string
	for _, e := range f.rec.Events()[mark:] {
		if e.Level >= min {
			out = append(out, e.Message)
		}
	}
	return out
}

func (f *fixture) Hits() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.hits
}

func (f *fixture) session(opts Options) *Session {
	opts.Root = f.root
	opts.BaseURL = f.server.URL + "/builds"
	opts.Client = f.server.Client()
	opts.Sink = f.rec
	return New(opts)
}

func (f *fixture) write(rel, body string) {
	f.t.Helper()
	path := filepath.Join(f.root, filepath.FromSlash(rel))
	require.NoError(f.t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(f.t, os.WriteFile(path, []byte(body), 0644))
}

func (f *fixture) read(rel string) string {
	f.t.Helper()
	data, err := os.ReadFile(filepath.Join(f.root, filepath.FromSlash(rel)))
	require.NoError(f.t, err)
	return string(data)
}

func (f *fixture) writeCache(records ...manifest.Record) {
	f.t.Helper()
	var parts []string
	for _, r := range records {
		parts = append(parts, fmt.Sprintf(`{"Name":%q,"RelativePath":%q,"SHA256":%q}`, r.Name, r.RelativePath, r.SHA256))
	}
	f.write("/"+hashindex.FileName, "["+strings.Join(parts, ",")+"]")
}

func rec(name, rel, body string) manifest.Record {
	return manifest.Record{Name: name, RelativePath: rel, SHA256: checksum.Bytes([]byte(body))}
}

func TestNew_LoadsCacheOnce(t *testing.T) {
	f := newFixture(t, nil)
	f.writeCache(rec("a.bin", "/a.bin", "a"))

	s := f.session(Options{})
	require.NotNil(t, s.Index())
	assert.Equal(t, 1, s.Index().Len())
	assert.NotEmpty(t, s.ID())
	assert.Contains(t, f.rec.Messages(events.LevelInfo), "loaded 1 cached hashes")

	for _, e := range f.rec.Events() {
		assert.Equal(t, s.ID(), e.Session)
	}
}

func TestNew_MissingCacheWarns(t *testing.T) {
	f := newFixture(t, nil)
	s := f.session(Options{})

	assert.Nil(t, s.Index())
	warnings := f.rec.Messages(events.LevelWarn)
	require.Len(t, warnings, 1)
	assert.Contains(t, warnings[0], "will resync everything")
}

func TestSessionIDsAreUnique(t *testing.T) {
	f := newFixture(t, nil)
	assert.NotEqual(t, f.session(Options{}).ID(), f.session(Options{}).ID())
}

func TestCheck_Scenario(t *testing.T) {
	f := newFixture(t, nil)
	f.write("/a.bin", "alpha")
	f.write("/b.json", "old json")
	f.writeCache(rec("a.bin", "/a.bin", "alpha"), rec("b.json", "/b.json", "old json"))

	s := f.session(Options{})
	s.SetManifest(manifest.New([]manifest.Record{
		rec("a.bin", "/a.bin", "alpha"),
		rec("b.json", "/b.json", "new json"),
	}))

	plan, err := s.Check(context.Background())
	require.NoError(t, err)
	assert.Empty(t, plan.Outdated)
	assert.Len(t, plan.ForceRefresh, 1)
	assert.Contains(t, f.rec.Messages(events.LevelInfo), "checking for updates")
	assert.Contains(t, f.rec.Messages(events.LevelInfo), "1 update(s) available: b.json")
	assert.Equal(t, 0, f.Hits(), "Check must not download")
}

func TestCheck_NoUpdates(t *testing.T) {
	f := newFixture(t, nil)
	f.write("/a.bin", "alpha")
	f.writeCache(rec("a.bin", "/a.bin", "alpha"))

	s := f.session(Options{})
	s.SetManifest(manifest.New([]manifest.Record{rec("a.bin", "/a.bin", "alpha")}))

	plan, err := s.Check(context.Background())
	require.NoError(t, err)
	assert.True(t, plan.Empty())
	assert.Contains(t, f.rec.Messages(events.LevelInfo), "no updates")
}

func TestCheck_LargePlanReportsCounts(t *testing.T) {
	f := newFixture(t, nil)
	var records []manifest.Record
	for i := 0; i < 12; i++ {
		records = append(records, rec(fmt.Sprintf("f%02d.bin", i), fmt.Sprintf("/f%02d.bin", i), "x"))
	}
	s := f.session(Options{})
	s.SetManifest(manifest.New(records))

	_, err := s.Check(context.Background())
	require.NoError(t, err)
	assert.Contains(t, f.rec.Messages(events.LevelInfo), "12 updates available (12 outdated, 0 to refresh)")
}

func TestManifestUnavailable(t *testing.T) {
	f := newFixture(t, nil)
	s := f.session(Options{})
	mark := f.mark()

	_, err := s.Check(context.Background())
	assert.ErrorIs(t, err, manifest.ErrManifestUnavailable)

	s.SetManifest(manifest.New(nil))
	rep, err := s.Apply(context.Background())
	assert.ErrorIs(t, err, manifest.ErrManifestUnavailable)
	assert.Nil(t, rep)

	assert.Equal(t, []string{"no manifest loaded", "no manifest loaded"}, f.since(mark, events.LevelError), "one diagnostic per call")
	assert.Equal(t, 0, f.Hits())
}

func TestFetchManifest(t *testing.T) {
	doc := fmt.Sprintf(`[{"Name":"a.bin","RelativePath":"/a.bin","SHA256":%q}]`, checksum.Bytes([]byte("alpha")))
	f := newFixture(t, map[string]string{"/Nightly.json": doc, "/a.bin": "alpha"})
	s := f.session(Options{})

	require.NoError(t, s.FetchManifest(context.Background(), f.server.URL+"/Nightly.json"))
	rep, err := s.Apply(context.Background())
	require.NoError(t, err)
	assert.True(t, rep.OK())
	assert.Equal(t, "alpha", f.read("/a.bin"))

	err = s.FetchManifest(context.Background(), f.server.URL+"/Stable.json")
	assert.ErrorIs(t, err, manifest.ErrManifestUnavailable)
	_, err = s.Check(context.Background())
	assert.ErrorIs(t, err, manifest.ErrManifestUnavailable, "a failed fetch leaves no manifest")
}

func TestApply_MissingTree(t *testing.T) {
	f := newFixture(t, map[string]string{
		"/a.bin":            "alpha",
		"/Data/b.json":      "{}",
		"/Data/deep/c.meta": "meta",
	})
	s := f.session(Options{Concurrency: 2})
	s.SetManifest(manifest.New([]manifest.Record{
		rec("a.bin", "/a.bin", "alpha"),
		rec("b.json", "/Data/b.json", "{}"),
		rec("c.meta", "/Data/deep/c.meta", "meta"),
	}))

	rep, err := s.Apply(context.Background())
	require.NoError(t, err)
	assert.True(t, rep.OK())
	assert.Equal(t, 3, rep.Planned)
	assert.Len(t, rep.Committed, 3)
	assert.Equal(t, int64(len("alpha")+len("{}")+len("meta")), rep.Bytes)
	assert.Equal(t, s.ID(), rep.SessionID)
	assert.Equal(t, "meta", f.read("/Data/deep/c.meta"))

	infos := f.rec.Messages(events.LevelInfo)
	assert.Contains(t, infos, "updating 3 asset(s): b.json, c.meta, a.bin")
	complete := 0
	for _, m := range infos {
		if strings.HasPrefix(m, "processing complete") {
			complete++
		}
	}
	assert.Equal(t, 1, complete)
}

func TestApply_TextMismatchWarns(t *testing.T) {
	f := newFixture(t, map[string]string{"/b.json": "served"})
	s := f.session(Options{})
	s.SetManifest(manifest.New([]manifest.Record{rec("b.json", "/b.json", "expected")}))

	rep, err := s.Apply(context.Background())
	require.NoError(t, err)
	assert.True(t, rep.OK())
	require.Len(t, rep.Warnings, 1)
	assert.Len(t, rep.Committed, 1)
	assert.Equal(t, "served", f.read("/b.json"))
	assert.NotEmpty(t, f.rec.Messages(events.LevelWarn))
}

func TestApply_BinaryMismatchFails(t *testing.T) {
	f := newFixture(t, map[string]string{"/a.bin": "tampered", "/c.bin": "charlie"})
	f.write("/a.bin", "previous")
	s := f.session(Options{})
	s.SetManifest(manifest.New([]manifest.Record{
		rec("a.bin", "/a.bin", "expected"),
		rec("c.bin", "/c.bin", "charlie"),
	}))

	rep, err := s.Apply(context.Background())
	require.NoError(t, err, "unit failures are reported, not returned")
	assert.False(t, rep.OK())
	require.Len(t, rep.Failed, 1)
	assert.ErrorIs(t, rep.Failed[0].Err, fetch.ErrIntegrity)
	assert.Equal(t, "previous", f.read("/a.bin"))
	assert.Equal(t, "charlie", f.read("/c.bin"))

	infos := f.rec.Messages(events.LevelInfo)
	assert.True(t, strings.HasPrefix(infos[len(infos)-1], "processing complete"))
	assert.Contains(t, f.rec.Messages(events.LevelWarn), "1 of 2 assets failed to update")
}

func TestApply_CheckThenApplyMatchesApplyAlone(t *testing.T) {
	bodies := map[string]string{"/a.bin": "alpha", "/b.json": "new json", "/c.bin": "charlie"}
	records := []manifest.Record{
		rec("a.bin", "/a.bin", "alpha"),
		rec("b.json", "/b.json", "new json"),
		rec("c.bin", "/c.bin", "charlie"),
	}
	setup := func(f *fixture) {
		f.write("/a.bin", "alpha")
		f.write("/b.json", "old json")
		f.writeCache(rec("a.bin", "/a.bin", "alpha"), rec("b.json", "/b.json", "old json"))
	}

	one := newFixture(t, bodies)
	setup(one)
	s1 := one.session(Options{})
	s1.SetManifest(manifest.New(records))
	_, err := s1.Check(context.Background())
	require.NoError(t, err)
	rep1, err := s1.Apply(context.Background())
	require.NoError(t, err)

	two := newFixture(t, bodies)
	setup(two)
	s2 := two.session(Options{})
	s2.SetManifest(manifest.New(records))
	rep2, err := s2.Apply(context.Background())
	require.NoError(t, err)

	assert.Equal(t, committedPaths(rep1), committedPaths(rep2))
	assert.Equal(t, []string{"/b.json", "/c.bin"}, committedPaths(rep1))
	for _, rel := range []string{"/a.bin", "/b.json", "/c.bin"} {
		assert.Equal(t, one.read(rel), two.read(rel))
	}
}

func TestApply_ReusesCheckedPlanOnce(t *testing.T) {
	f := newFixture(t, map[string]string{"/a.bin": "alpha"})
	s := f.session(Options{})
	s.SetManifest(manifest.New([]manifest.Record{rec("a.bin", "/a.bin", "alpha")}))

	plan, err := s.Check(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, plan.Len())

	mark := f.mark()
	_, err = s.Apply(context.Background())
	require.NoError(t, err)
	assert.NotContains(t, f.since(mark, events.LevelInfo), "checking for updates", "checked plan should be reused")

	// The cache still has no entry, so a fresh plan schedules the file again.
	mark = f.mark()
	rep, err := s.Apply(context.Background())
	require.NoError(t, err)
	assert.Contains(t, f.since(mark, events.LevelInfo), "checking for updates")
	assert.Equal(t, 1, rep.Planned)
}

func TestSetManifestInvalidatesPlan(t *testing.T) {
	f := newFixture(t, map[string]string{"/a.bin": "alpha", "/c.bin": "charlie"})
	s := f.session(Options{})
	s.SetManifest(manifest.New([]manifest.Record{rec("a.bin", "/a.bin", "alpha")}))
	_, err := s.Check(context.Background())
	require.NoError(t, err)

	s.SetManifest(manifest.New([]manifest.Record{rec("c.bin", "/c.bin", "charlie")}))
	rep, err := s.Apply(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"/c.bin"}, committedPaths(rep))
}

func TestApply_AbsentCacheIsIdempotent(t *testing.T) {
	f := newFixture(t, map[string]string{"/a.bin": "alpha"})
	s := f.session(Options{})
	s.SetManifest(manifest.New([]manifest.Record{rec("a.bin", "/a.bin", "alpha")}))

	for i := 0; i < 2; i++ {
		plan, err := s.Check(context.Background())
		require.NoError(t, err)
		assert.Equal(t, planner.NoIndex, plan.Outdated["/a.bin"].Reason)
		rep, err := s.Apply(context.Background())
		require.NoError(t, err)
		assert.True(t, rep.OK())
	}
	assert.Equal(t, 2, f.Hits())
}

func TestApply_Verify(t *testing.T) {
	f := newFixture(t, map[string]string{"/a.bin": "alpha"})
	f.write("/a.bin", "corrupt")
	f.writeCache(rec("a.bin", "/a.bin", "alpha"))

	s := f.session(Options{Verify: true, HashWorkers: 2})
	s.SetManifest(manifest.New([]manifest.Record{rec("a.bin", "/a.bin", "alpha")}))

	rep, err := s.Apply(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, rep.Planned)
	assert.Equal(t, "alpha", f.read("/a.bin"))
}

func TestApply_CancelledContext(t *testing.T) {
	f := newFixture(t, map[string]string{"/a.bin": "alpha"})
	s := f.session(Options{})
	s.SetManifest(manifest.New([]manifest.Record{rec("a.bin", "/a.bin", "alpha")}))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := s.Apply(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 0, f.Hits())
}

func TestCheck_CancelledContext(t *testing.T) {
	f := newFixture(t, map[string]string{"/a.bin": "alpha"})
	f.write("/a.bin", "alpha")
	s := f.session(Options{Verify: true, HashWorkers: 2})
	s.SetManifest(manifest.New([]manifest.Record{rec("a.bin", "/a.bin", "alpha")}))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	plan, err := s.Check(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Nil(t, plan)

	// Nothing was cached, so Apply plans anew and finds the file current.
	rep, err := s.Apply(context.Background())
	require.NoError(t, err)
	assert.Zero(t, rep.Planned)
	assert.Equal(t, 0, f.Hits())
}

func TestBusy(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})
	var once sync.Once
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		once.Do(func() { close(started) })
		<-release
		fmt.Fprint(w, "alpha")
	}))
	defer server.Close()

	s := New(Options{
		Root:    t.TempDir(),
		BaseURL: server.URL,
		Client:  server.Client(),
	})
	s.SetManifest(manifest.New([]manifest.Record{rec("a.bin", "/a.bin", "alpha")}))

	done := make(chan error, 1)
	go func() {
		_, err := s.Apply(context.Background())
		done <- err
	}()

	<-started
	_, err := s.Check(context.Background())
	assert.ErrorIs(t, err, ErrBusy)
	_, err = s.Apply(context.Background())
	assert.ErrorIs(t, err, ErrBusy)

	close(release)
	require.NoError(t, <-done)

	_, err = s.Check(context.Background())
	assert.NoError(t, err, "session returns to idle")
}

func TestNew_MemFs(t *testing.T) {
	fsys := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fsys, "/game/"+hashindex.FileName, []byte(`[]`), 0644))

	s := New(Options{Root: "/game", FS: fsys})
	require.NotNil(t, s.Index())
	assert.Equal(t, 0, s.Index().Len())
}

func TestReportOK(t *testing.T) {
	var nilReport *Report
	assert.False(t, nilReport.OK())
	assert.True(t, (&Report{}).OK())
	assert.False(t, (&Report{Skipped: []fetch.Result{{}}}).OK())
	assert.False(t, (&Report{Failed: []fetch.Result{{Err: errors.New("x")}}}).OK())
}

func committedPaths(rep *Report) []string {
	var out []string
	for _, r := range rep.Committed {
		out = append(out, r.Unit.Record.RelativePath)
	}
	return out
}
