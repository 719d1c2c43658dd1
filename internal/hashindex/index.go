package hashindex

import (
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"

	"github.com/spf13/afero"

	"github.com/assetsync/assetsync/internal/manifest"
)

// FileName is the cache file name inside the local root.
const FileName = "hashes.json"

// ErrCacheUnreadable is returned when the cache is missing or malformed.
// Callers treat it as "no index" rather than as a fatal error.
var ErrCacheUnreadable = errors.New("hash cache unreadable")

// Index maps normalized relative paths to recorded hashes.
// A nil *Index means the cache was absent; lookups on it always miss.
type Index struct {
	hashes map[string]string
}

// New builds an Index from records. Later duplicates win.
func New(records []manifest.Record) *Index {
	idx := &Index{hashes: make(map[string]string, len(records))}
	for _, r := range records {
		idx.hashes[manifest.NormalizePath(r.RelativePath)] = r.SHA256
	}
	return idx
}

// Load reads root/hashes.json.
// Returns nil and an error wrapping ErrCacheUnreadable if the file does not
// exist (first run) or cannot be decoded.
func Load(fsys afero.Fs, root string) (*Index, error) {
	path := filepath.Join(root, FileName)

	data, err := afero.ReadFile(fsys, path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s: %w", ErrCacheUnreadable, path, fs.ErrNotExist)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: reading %s: %w", ErrCacheUnreadable, path, err)
	}

	records, err := manifest.Decode(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrCacheUnreadable, path, err)
	}
	return New(records), nil
}

// Len returns the number of cached entries.
func (i *Index) Len() int {
	if i == nil {
		return 0
	}
	return len(i.hashes)
}

// Lookup returns the recorded hash for a relative path.
func (i *Index) Lookup(relativePath string) (string, bool) {
	if i == nil {
		return "", false
	}
	h, ok := i.hashes[manifest.NormalizePath(relativePath)]
	return h, ok
}
