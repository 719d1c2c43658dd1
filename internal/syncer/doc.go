// Package syncer runs check and apply cycles for one local tree.
//
// A Session owns the tree's root, the remote manifest and the local hash
// cache, and moves between three states:
//
//	Idle -> Checking -> Idle
//	Idle -> Applying -> Idle
//
// Check computes a plan and keeps it. An Apply that follows immediately
// reuses that plan instead of diffing the tree again; any other Apply plans
// from scratch. A Session runs one operation at a time and rejects
// overlapping calls with ErrBusy.
package syncer
