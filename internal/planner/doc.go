// Package planner compares a remote manifest against the local tree and the
// local hash cache and decides which assets must be downloaded.
//
// Assets whose recorded hash differs from the manifest are split by the
// text-like policy: text-like assets (configuration and metadata files that
// are routinely regenerated) go to ForceRefresh, everything else goes to
// Outdated. Both sets are downloaded; the split only changes how a checksum
// mismatch after download is treated.
package planner
