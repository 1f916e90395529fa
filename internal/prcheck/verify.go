package prcheck

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
)

// ErrInconsistent makes verify exit non-zero when a pair is broken.
var ErrInconsistent = errors.New("inconsistent personal records found")

func NewVerifyCommand(rootOpts *RootOptions, openService OpenServiceFunc) *cobra.Command {
	return &cobra.Command{
		Use:           "verify",
		Short:         "Report pairs whose PR flag is missing, duplicated or on the wrong entry",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			service, release, err := openService(cmd.Context(), rootOpts)
			if err != nil {
				return fmt.Errorf("open service: %w", err)
			}
			defer release()

			reports, err := service.Verify(cmd.Context(), rootOpts.UserID)
			if err != nil {
				return fmt.Errorf("verify: %w", err)
			}

			out := checkOutput{Pairs: len(reports), Results: []pairResult{}}
			for _, report := range reports {
				result := newPairResult(report)
				if !result.Consistent {
					out.Inconsistent++
				}
				out.Results = append(out.Results, result)
			}

			if err := writeOutput(cmd.OutOrStdout(), rootOpts.Format, out); err != nil {
				return err
			}
			if out.Inconsistent > 0 {
				return ErrInconsistent
			}
			return nil
		},
	}
}
