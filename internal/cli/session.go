package cli

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/assetsync/assetsync/internal/branding"
	"github.com/assetsync/assetsync/internal/config"
	"github.com/assetsync/assetsync/internal/events"
	"github.com/assetsync/assetsync/internal/hashindex"
	"github.com/assetsync/assetsync/internal/manifest"
	"github.com/assetsync/assetsync/internal/planner"
	"github.com/assetsync/assetsync/internal/syncer"
	"github.com/assetsync/assetsync/internal/transport"
)

// syncFlags are the flags shared by check and apply.
type syncFlags struct {
	channel      string
	path         string
	manifestFile string
	verify       bool
	concurrency  int
	keepFailed   bool
}

func (f *syncFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.channel, "channel", "", "release channel (default from config)")
	cmd.Flags().StringVar(&f.path, "path", "", "local tree to sync (default from config, else the working directory)")
	cmd.Flags().StringVar(&f.manifestFile, "manifest", "", "read the manifest from a local file instead of the channel endpoint")
	cmd.Flags().BoolVar(&f.verify, "verify", false, "rehash local files instead of trusting "+hashindex.FileName)
}

// openSession resolves settings and flags, builds a session and loads its
// manifest.
func openSession(ctx context.Context, cmd *cobra.Command, f *syncFlags) (*syncer.Session, error) {
	settings, err := config.Current()
	if err != nil {
		return nil, err
	}

	ch, err := settings.ResolveChannel(f.channel)
	if err != nil {
		return nil, err
	}

	root := settings.LocalPath
	if f.path != "" {
		root = f.path
	}
	root, err = filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolving local path: %w", err)
	}

	proxy := settings.Proxy
	if proxyURL != "" {
		proxy = proxyURL
	}
	client, err := transport.New(transport.WithProxy(proxy), transport.WithTimeout(settings.Timeout))
	if err != nil {
		return nil, err
	}

	concurrency := settings.Concurrency
	if cmd.Flags().Changed("concurrency") {
		concurrency = f.concurrency
	}

	logger.Debug("resolved settings", "root", root, "channel", ch.Name, "manifest", ch.ManifestURL, "download", ch.DownloadURL)

	s := syncer.New(syncer.Options{
		Root:           root,
		BaseURL:        ch.DownloadURL,
		Client:         client,
		Sink:           events.NewSlogSink(logger),
		Concurrency:    concurrency,
		Policy:         planner.NewPolicy(settings.TextExtensions...),
		Verify:         f.verify,
		HashWorkers:    settings.HashWorkers,
		KeepFailed:     settings.KeepFailed || f.keepFailed,
		BytesPerSecond: settings.RateLimit,
		UserAgent:      branding.UserAgent() + "/" + buildVersion,
	})
	logger.Debug("session opened", "session", s.ID(), "cached_hashes", s.Index().Len())

	if f.manifestFile != "" {
		m, err := manifest.ParseFile(f.manifestFile)
		if err != nil {
			return nil, err
		}
		s.SetManifest(m)
		return s, nil
	}
	if err := s.FetchManifest(ctx, ch.ManifestURL); err != nil {
		return nil, err
	}
	return s, nil
}

// errUnitsFailed is returned by apply when at least one asset did not
// update, so the process exits non-zero.
var errUnitsFailed = errors.New("some assets failed to update")
