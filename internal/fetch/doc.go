// Package fetch downloads planned assets into a local tree.
//
// Each asset is streamed to a staging file next to its destination, hashed
// while it is written, and moved into place only after the hash matches the
// manifest. A bounded worker pool runs the transfers; each worker reports a
// Result and the caller reduces them after the pool has drained.
//
// A checksum mismatch on a text-like asset is reported as a warning and the
// download is kept, because those files are regenerated on the server between
// manifest builds. Any other mismatch leaves the existing file untouched.
package fetch
