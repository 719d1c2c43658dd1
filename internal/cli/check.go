package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/assetsync/assetsync/internal/hashindex"
	"github.com/assetsync/assetsync/internal/planner"
)

var checkFlags syncFlags

func init() {
	checkFlags.register(checkCmd)
	rootCmd.AddCommand(checkCmd)
}

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "List assets that differ from the manifest",
	Long: `Fetches the channel manifest and compares it with the local tree and its
hashes.json cache. Nothing is downloaded.

  assetsync check                     # default channel and path
  assetsync check --channel stable    # another channel
  assetsync check --verify            # rehash local files`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		s, err := openSession(ctx, cmd, &checkFlags)
		if err != nil {
			return err
		}

		plan, err := s.Check(ctx)
		if err != nil {
			return err
		}
		printPlan(cmd, plan)
		if s.Index() == nil && !checkFlags.verify && !plan.Empty() {
			fmt.Fprintf(cmd.OutOrStdout(), "No %s in the local tree, every asset is scheduled.\n", hashindex.FileName)
		}
		return nil
	},
}

func printPlan(cmd *cobra.Command, plan *planner.Plan) {
	out := cmd.OutOrStdout()
	if plan.Empty() {
		fmt.Fprintln(out, "Up to date.")
		return
	}
	for _, e := range plan.Entries() {
		_, force := plan.ForceRefresh[e.Record.RelativePath]
		kind := "outdated"
		if force {
			kind = "refresh"
		}
		fmt.Fprintf(out, "  %-8s %-13s %s\n", kind, e.Reason, e.Record.RelativePath)
	}
	fmt.Fprintf(out, "%d asset(s) to update.\n", plan.Len())
}
