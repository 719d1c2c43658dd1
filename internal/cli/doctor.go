package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/assetsync/assetsync/internal/config"
	"github.com/assetsync/assetsync/internal/hashindex"
	"github.com/assetsync/assetsync/internal/manifest"
	"github.com/assetsync/assetsync/internal/planner"
	"github.com/assetsync/assetsync/internal/transport"
)

var (
	checkConfig   bool
	checkPath     bool
	checkCache    bool
	checkEndpoint bool
	checkManifest string
	doctorPath    string
	doctorChannel string
)

func init() {
	doctorCmd.Flags().BoolVar(&checkConfig, "check-config", false, "Verify settings parse and the channel resolves")
	doctorCmd.Flags().BoolVar(&checkPath, "check-path", false, "Verify the local tree exists and is writable")
	doctorCmd.Flags().BoolVar(&checkCache, "check-cache", false, "Verify "+hashindex.FileName+" is readable")
	doctorCmd.Flags().BoolVar(&checkEndpoint, "check-endpoint", false, "Fetch and validate the channel manifest")
	doctorCmd.Flags().StringVar(&checkManifest, "check-manifest", "", "Validate a manifest file at the given path")
	doctorCmd.Flags().StringVar(&doctorPath, "path", "", "local tree to inspect (default from config)")
	doctorCmd.Flags().StringVar(&doctorChannel, "channel", "", "release channel (default from config)")
	rootCmd.AddCommand(doctorCmd)
}

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Health check for the local tree and settings",
	Long:  `Run diagnostic checks on settings, the local tree, its hash cache and the manifest endpoint.`,
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		out := cmd.OutOrStdout()
		anyFlag := checkConfig || checkPath || checkCache || checkEndpoint || checkManifest != ""

		settings, settingsErr := config.Current()
		root := settings.LocalPath
		if doctorPath != "" {
			root = doctorPath
		}

		failed := false
		run := func(enabled bool, check func(io.Writer) error) {
			if !anyFlag || enabled {
				if err := check(out); err != nil {
					failed = true
				}
			}
		}

		run(checkConfig, func(w io.Writer) error { return runConfigCheck(w, settings, settingsErr) })
		run(checkPath, func(w io.Writer) error { return runPathCheck(w, root) })
		run(checkCache, func(w io.Writer) error { return runCacheCheck(w, root) })
		run(checkEndpoint, func(w io.Writer) error { return runEndpointCheck(cmd.Context(), w, settings) })
		if checkManifest != "" {
			if err := runManifestCheck(out, checkManifest); err != nil {
				failed = true
			}
		}

		if failed {
			return errors.New("one or more checks failed")
		}
		return nil
	},
}

func runConfigCheck(w io.Writer, s config.Settings, err error) error {
	fmt.Fprintln(w, "Config check:")
	if err != nil {
		fmt.Fprintf(w, "  [FAIL] %v\n", err)
		return err
	}
	fmt.Fprintf(w, "  [ OK ] settings file %s\n", config.FilePath())
	ch, err := s.ResolveChannel(doctorChannel)
	if err != nil {
		fmt.Fprintf(w, "  [FAIL] %v\n", err)
		return err
	}
	fmt.Fprintf(w, "  [ OK ] channel %s -> %s\n", ch.Name, ch.ManifestURL)
	policy := planner.NewPolicy(s.TextExtensions...)
	fmt.Fprintf(w, "  [ OK ] text-like extensions %s\n", strings.Join(policy.Extensions(), " "))
	return nil
}

func runPathCheck(w io.Writer, root string) error {
	fmt.Fprintln(w, "Local tree check:")
	info, err := os.Stat(root)
	if err != nil {
		fmt.Fprintf(w, "  [FAIL] %s: %v\n", root, err)
		return err
	}
	if !info.IsDir() {
		err := fmt.Errorf("%s is not a directory", root)
		fmt.Fprintf(w, "  [FAIL] %v\n", err)
		return err
	}

	f, err := os.CreateTemp(root, ".assetsync-write-*")
	if err != nil {
		fmt.Fprintf(w, "  [FAIL] %s is not writable: %v\n", root, err)
		return err
	}
	f.Close()
	os.Remove(f.Name())

	fmt.Fprintf(w, "  [ OK ] %s is a writable directory\n", root)
	return nil
}

func runCacheCheck(w io.Writer, root string) error {
	fmt.Fprintln(w, "Hash cache check:")
	idx, err := hashindex.Load(afero.NewOsFs(), root)
	if errors.Is(err, fs.ErrNotExist) {
		// A missing cache only means the next apply downloads everything.
		fmt.Fprintf(w, "  [WARN] no %s in %s, every asset will be downloaded\n", hashindex.FileName, root)
		return nil
	}
	if err != nil {
		fmt.Fprintf(w, "  [FAIL] %v\n", err)
		return err
	}
	fmt.Fprintf(w, "  [ OK ] %s lists %d assets\n", filepath.Join(root, hashindex.FileName), idx.Len())
	return nil
}

func runEndpointCheck(ctx context.Context, w io.Writer, s config.Settings) error {
	fmt.Fprintln(w, "Endpoint check:")
	ch, err := s.ResolveChannel(doctorChannel)
	if err != nil {
		fmt.Fprintf(w, "  [FAIL] %v\n", err)
		return err
	}

	proxy := s.Proxy
	if proxyURL != "" {
		proxy = proxyURL
	}
	client, err := transport.New(transport.WithProxy(proxy), transport.WithTimeout(s.Timeout))
	if err != nil {
		fmt.Fprintf(w, "  [FAIL] %v\n", err)
		return err
	}

	m, err := manifest.Fetch(ctx, client, ch.ManifestURL, "")
	if err != nil {
		fmt.Fprintf(w, "  [FAIL] %v\n", err)
		return err
	}
	fmt.Fprintf(w, "  [ OK ] %s lists %d assets\n", ch.ManifestURL, m.Len())
	return nil
}

func runManifestCheck(w io.Writer, path string) error {
	fmt.Fprintln(w, "Manifest check:")
	m, err := manifest.ParseFile(path)
	if err != nil {
		var verr *manifest.ValidationError
		if errors.As(err, &verr) {
			for _, issue := range verr.Issues {
				fmt.Fprintf(w, "  [FAIL] %s: %s\n", issue.Path, issue.Message)
			}
			return err
		}
		fmt.Fprintf(w, "  [FAIL] %v\n", err)
		return err
	}
	fmt.Fprintf(w, "  [ OK ] %s lists %d assets\n", path, m.Len())
	return nil
}
