package manifest

import (
	"errors"
	"strings"
)

// ErrManifestUnavailable marks a manifest that is missing, empty, or cannot
// be parsed. It is fatal for the Check or Apply call that needed it.
var ErrManifestUnavailable = errors.New("manifest unavailable")

// Record is one asset entry. Field names are matched case-insensitively on
// decode, so documents using Name/RelativePath/SHA256 decode as well.
type Record struct {
	Name         string `json:"name"`
	RelativePath string `json:"relativePath"`
	SHA256       string `json:"sha256"`
}

// Manifest is an ordered set of records keyed by relative path.
// A nil *Manifest behaves as an empty one.
type Manifest struct {
	records []Record
	index   map[string]int
}

// New builds a Manifest from records. Paths are normalized with
// NormalizePath; when two records share a path the later one wins but keeps
// the position of the first.
func New(records []Record) *Manifest {
	m := &Manifest{
		records: make([]Record, 0, len(records)),
		index:   make(map[string]int, len(records)),
	}
	for _, r := range records {
		r.RelativePath = NormalizePath(r.RelativePath)
		if i, ok := m.index[r.RelativePath]; ok {
			m.records[i] = r
			continue
		}
		m.index[r.RelativePath] = len(m.records)
		m.records = append(m.records, r)
	}
	return m
}

// Records returns a copy of the records in manifest order.
func (m *Manifest) Records() []Record {
	if m == nil {
		return nil
	}
	out := make([]Record, len(m.records))
	copy(out, m.records)
	return out
}

// Len returns the number of distinct assets.
func (m *Manifest) Len() int {
	if m == nil {
		return 0
	}
	return len(m.records)
}

// NormalizePath converts a relative path to the POSIX form used as the
// record key: forward slashes and a single leading "/".
// "Data\\skins\\a.png" -> "/Data/skins/a.png"
func NormalizePath(p string) string {
	p = strings.ReplaceAll(p, "\\", "/")
	return "/" + strings.TrimLeft(p, "/")
}
