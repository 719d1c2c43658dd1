// Package hashindex loads the local hash cache: the hashes.json file kept at
// the root of a synced tree, mapping each relative path to the SHA-256 the
// file had when it was last synced. The cache is owned by whatever produced
// the tree; this package only reads it.
package hashindex
