package planner

import "strings"

// DefaultTextExtensions are the suffixes treated as text-like when no
// override is configured.
var DefaultTextExtensions = []string{".json", ".meta", ".browser"}

// Policy classifies relative paths as text-like by suffix, ignoring case.
// The zero value uses DefaultTextExtensions.
type Policy struct {
	suffixes []string
}

// NewPolicy returns a Policy for the given extensions. Entries are trimmed,
// lowercased and given a leading dot when missing. With no usable entries the
// defaults apply.
func NewPolicy(extensions ...string) Policy {
	var suffixes []string
	for _, ext := range extensions {
		ext = strings.ToLower(strings.TrimSpace(ext))
		if ext == "" || ext == "." {
			continue
		}
		if !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		suffixes = append(suffixes, ext)
	}
	return Policy{suffixes: suffixes}
}

// Extensions returns the suffixes in effect.
func (p Policy) Extensions() []string {
	if len(p.suffixes) == 0 {
		return append([]string(nil), DefaultTextExtensions...)
	}
	return append([]string(nil), p.suffixes...)
}

// TextLike reports whether relativePath ends with one of the policy's
// extensions.
func (p Policy) TextLike(relativePath string) bool {
	lower := strings.ToLower(relativePath)
	suffixes := p.suffixes
	if len(suffixes) == 0 {
		suffixes = DefaultTextExtensions
	}
	for _, s := range suffixes {
		if strings.HasSuffix(lower, s) {
			return true
		}
	}
	return false
}
