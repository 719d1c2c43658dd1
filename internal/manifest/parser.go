package manifest

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
)

// Decode unmarshals a JSON array of records without validating them.
// Used for the local hash cache, which is trusted to be well formed.
func Decode(data []byte) ([]Record, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, fmt.Errorf("empty document")
	}
	var records []Record
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("parsing asset list: %w", err)
	}
	return records, nil
}

// Parse decodes, validates and normalizes a remote manifest document.
// Every failure wraps ErrManifestUnavailable.
func Parse(data []byte) (*Manifest, error) {
	records, err := Decode(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrManifestUnavailable, err)
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("%w: manifest lists no assets", ErrManifestUnavailable)
	}

	m := New(records)
	result, err := Validate(m.Records())
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrManifestUnavailable, err)
	}
	if !result.Valid {
		return nil, fmt.Errorf("%w: %w", ErrManifestUnavailable, &ValidationError{Issues: result.Issues})
	}
	return m, nil
}

// ParseFile reads and parses a manifest stored on disk.
func ParseFile(path string) (*Manifest, error) {
	data, err := readFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrManifestUnavailable, err)
	}
	return Parse(data)
}

// readFile reads the contents of a file at the given path.
func readFile(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading file %s: %w", path, err)
	}
	return data, nil
}
