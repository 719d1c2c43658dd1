// Package manifest handles the remote asset manifest: a JSON array of
// {name, relativePath, sha256} records describing every file a local tree
// should contain. It decodes and normalizes records, validates them against
// the embedded JSON Schema, and fetches channel manifests over HTTP.
package manifest
