package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"

	"github.com/spf13/cobra"

	"github.com/assetsync/assetsync/internal/branding"
	"github.com/assetsync/assetsync/internal/config"
	"github.com/assetsync/assetsync/internal/logging"
)

var (
	buildVersion string
	buildCommit  string
	buildDate    string

	logLevel  string
	logFormat string
	proxyURL  string

	logger = slog.New(slog.DiscardHandler)
)

var rootCmd = &cobra.Command{
	Use:   branding.CLIName(),
	Short: branding.Description(),
	Long: branding.DisplayName() + ` keeps a local file tree identical to a remote manifest of
(name, relativePath, sha256) entries. Only missing or changed files are
downloaded, and every download is verified before it replaces a local file.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		config.Load()

		l, err := logging.New(cmd.ErrOrStderr(), logLevel, logFormat)
		if err != nil {
			return err
		}
		logger = l
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "text", "log format (text, json)")
	rootCmd.PersistentFlags().StringVar(&proxyURL, "proxy", "", "HTTP proxy URL (overrides the proxy setting and "+branding.EnvVar("PROXY")+")")
}

// Execute runs the root command with build info injected via ldflags.
// An interrupt cancels the running sync; downloads in flight are abandoned
// and their staging files removed.
func Execute(version, commit, date string) error {
	buildVersion = version
	buildCommit = commit
	buildDate = date

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return err
	}
	return nil
}
