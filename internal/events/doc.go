// Package events carries the human-readable progress stream of a sync
// session. Producers call Sink.Emit once per significant action (plan
// summary, per-asset fetch start or failure, completion); consumers decide
// how lines are displayed. Emit must never block the producer for long.
package events
