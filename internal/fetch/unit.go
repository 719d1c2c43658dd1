package fetch

import (
	"errors"
	"fmt"
	"net/url"
	"path/filepath"
	"strings"

	"github.com/assetsync/assetsync/internal/manifest"
	"github.com/assetsync/assetsync/internal/planner"
)

// StagingSuffix is appended to a destination to name its staging file.
const StagingSuffix = ".tmp"

// ErrDirectoryUnresolvable is returned for a relative path that names the
// root itself or points outside it.
var ErrDirectoryUnresolvable = errors.New("destination directory unresolvable")

// Unit is one asset transfer.
type Unit struct {
	Record      manifest.Record
	URL         string
	Destination string
	Staging     string
	TextLike    bool
}

// NewUnit resolves the URL and local paths for r.
func NewUnit(r manifest.Record, root, baseURL string, policy planner.Policy) (Unit, error) {
	rel := manifest.NormalizePath(r.RelativePath)
	dest := planner.LocalPath(root, rel)

	inside, err := filepath.Rel(filepath.Clean(root), dest)
	if err != nil || inside == "." || inside == ".." || strings.HasPrefix(inside, ".."+string(filepath.Separator)) {
		return Unit{}, fmt.Errorf("%w: %s", ErrDirectoryUnresolvable, r.RelativePath)
	}

	return Unit{
		Record:      r,
		URL:         joinURL(baseURL, rel),
		Destination: dest,
		Staging:     dest + StagingSuffix,
		TextLike:    policy.TextLike(rel),
	}, nil
}

// joinURL appends an escaped relative path to base.
// "https://host/builds/Nightly", "/Data/a b.json" -> ".../Nightly/Data/a%20b.json"
func joinURL(base, rel string) string {
	segments := strings.Split(strings.TrimPrefix(rel, "/"), "/")
	for i, s := range segments {
		segments[i] = url.PathEscape(s)
	}
	return strings.TrimRight(base, "/") + "/" + strings.Join(segments, "/")
}
