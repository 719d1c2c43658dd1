// Package cli defines the Cobra command tree for the assetsync CLI. Each file
// in this package registers one top-level command (check, apply, config,
// version) with the root command. Commands resolve settings, build a sync
// session and render its outcome; the sync logic itself lives in
// internal/syncer.
package cli
