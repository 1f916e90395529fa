package prcheck

import (
	"fmt"

	"github.com/spf13/cobra"
)

func NewRepairCommand(rootOpts *RootOptions, openService OpenServiceFunc) *cobra.Command {
	var dryRun bool

	cmd := &cobra.Command{
		Use:           "repair",
		Short:         "Re-run PR resolution for every inconsistent pair",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			service, release, err := openService(ctx, rootOpts)
			if err != nil {
				return fmt.Errorf("open service: %w", err)
			}
			defer release()

			reports, err := service.Verify(ctx, rootOpts.UserID)
			if err != nil {
				return fmt.Errorf("verify: %w", err)
			}

			out := checkOutput{Pairs: len(reports), Results: []pairResult{}}
			for _, report := range reports {
				if report.Consistent() {
					continue
				}
				out.Inconsistent++
				result := newPairResult(report)

				if !dryRun {
					if _, err := service.RepairPair(ctx, report.Pair); err != nil {
						return fmt.Errorf("repair [%s]: %w", report.Pair, err)
					}
					result.Repaired = true
					out.Repaired++
				}
				out.Results = append(out.Results, result)
			}

			return writeOutput(cmd.OutOrStdout(), rootOpts.Format, out)
		},
	}

	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "only report what would be repaired")
	return cmd
}
