package cli

import (
	"fmt"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/assetsync/assetsync/internal/syncer"
)

var (
	applyFlags syncFlags
	applyCheck bool
)

func init() {
	applyFlags.register(applyCmd)
	applyCmd.Flags().BoolVar(&applyCheck, "check", false, "Check first and print the plan, then apply it")
	applyCmd.Flags().IntVar(&applyFlags.concurrency, "concurrency", 5, "Maximum simultaneous downloads")
	applyCmd.Flags().BoolVar(&applyFlags.keepFailed, "keep-failed", false, "Keep the staging file of a download that failed verification")

	rootCmd.AddCommand(applyCmd)
}

var applyCmd = &cobra.Command{
	Use:     "apply",
	Aliases: []string{"update"},
	Short:   "Download missing and changed assets",
	Long: `Fetches the channel manifest, works out which files are missing or stale,
downloads them and moves each into place once its checksum matches.

  assetsync apply                    # sync the default channel
  assetsync apply --check            # print the plan, then apply it
  assetsync apply --concurrency 10   # more parallel downloads`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		s, err := openSession(ctx, cmd, &applyFlags)
		if err != nil {
			return err
		}

		if applyCheck {
			plan, err := s.Check(ctx)
			if err != nil {
				return err
			}
			printPlan(cmd, plan)
		}

		rep, err := s.Apply(ctx)
		if rep != nil {
			printReport(cmd, rep)
		}
		if err != nil {
			return err
		}
		if !rep.OK() {
			return errUnitsFailed
		}
		return nil
	},
}

func printReport(cmd *cobra.Command, rep *syncer.Report) {
	out := cmd.OutOrStdout()
	for _, r := range rep.Failed {
		fmt.Fprintf(out, "  failed   %s: %v\n", r.Unit.Record.RelativePath, r.Err)
	}
	for _, r := range rep.Warnings {
		fmt.Fprintf(out, "  warning  %s: %s\n", r.Unit.Record.RelativePath, r.Warning)
	}
	fmt.Fprintf(out, "Updated %d of %d asset(s), %s in %s.\n",
		len(rep.Committed), rep.Planned, humanize.Bytes(uint64(rep.Bytes)), rep.Duration.Round(time.Millisecond))
	if n := len(rep.Skipped); n > 0 {
		fmt.Fprintf(out, "%d asset(s) not started.\n", n)
	}
}
