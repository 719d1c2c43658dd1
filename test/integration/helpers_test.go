//go:build integration

package integration_test

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// testEnv holds an isolated local tree and a fake asset CDN.
type testEnv struct {
	Root   string // local tree being synced
	Server *httptest.Server

	mu       sync.Mutex
	assets   map[string]string // relative path -> published content
	override map[string]string // relative path -> content actually served
	requests []string
}

// setupTestEnv creates a temp tree and a server publishing assets under
// /manifests/Nightly.json and /builds/Nightly/<relativePath>.
func setupTestEnv(t *testing.T, assets map[string]string) *testEnv {
	t.Helper()

	env := &testEnv{
		Root:     t.TempDir(),
		assets:   assets,
		override: map[string]string{},
	}
	env.Server = httptest.NewServer(http.HandlerFunc(env.serve))
	t.Cleanup(env.Server.Close)
	return env
}

func (e *testEnv) serve(w http.ResponseWriter, r *http.Request) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.requests = append(e.requests, r.URL.Path)

	if r.URL.Path == "/manifests/Nightly.json" {
		var entries []map[string]string
		for rel, body := range e.assets {
			entries = append(entries, map[string]string{
				"Name":         filepath.Base(rel),
				"RelativePath": rel,
				"SHA256":       sha(body),
			})
		}
		_ = json.NewEncoder(w).Encode(entries)
		return
	}

	rel := strings.TrimPrefix(r.URL.Path, "/builds/Nightly")
	body, ok := e.override[rel]
	if !ok {
		body, ok = e.assets[rel]
	}
	if !ok {
		http.NotFound(w, r)
		return
	}
	_, _ = w.Write([]byte(body))
}

// Serve makes the server return body for rel instead of the published content.
func (e *testEnv) Serve(rel, body string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.override[rel] = body
}

// Downloads returns how many asset requests the server has seen.
func (e *testEnv) Downloads() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	n := 0
	for _, p := range e.requests {
		if strings.HasPrefix(p, "/builds/") {
			n++
		}
	}
	return n
}

func (e *testEnv) ManifestURL() string { return e.Server.URL + "/manifests/Nightly.json" }
func (e *testEnv) BaseURL() string     { return e.Server.URL + "/builds/Nightly" }

// writeCache writes hashes.json describing the current published assets.
func (e *testEnv) writeCache(t *testing.T) {
	t.Helper()
	var entries []map[string]string
	for rel, body := range e.assets {
		entries = append(entries, map[string]string{"Name": filepath.Base(rel), "RelativePath": rel, "SHA256": sha(body)})
	}
	data, err := json.Marshal(entries)
	require.NoError(t, err)
	writeFile(t, filepath.Join(e.Root, "hashes.json"), string(data))
}

func sha(s string) string {
	h := sha256.Sum256([]byte(s))
	return hex.EncodeToString(h[:])
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755), "creating dir for %s", path)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644), "writing %s", path)
}

func assertFileContent(t *testing.T, path, want string) {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err, "reading %s", path)
	assert.Equal(t, want, string(data), path)
}

func assertFileNotExists(t *testing.T, path string) {
	t.Helper()
	assert.NoFileExists(t, path)
}
