package cli

import (
	"github.com/spf13/cobra"
)

// NewVerifyCmd creates the verify command
func NewVerifyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "verify [distribution...]",
		Short: "Check published distributions for consistency",
		Long: `Re-hashes every index file listed by a distribution's published
manifest, checks the signature artifacts exist and confirms each
indexed package is fetchable from the pool with matching digests.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			r, cfg, err := openRepository(cmd)
			if err != nil {
				return err
			}

			distributions := args
			if len(distributions) == 0 {
				distributions = cfg.Distributions
			}

			for _, dist := range distributions {
				if err := r.Verify(dist); err != nil {
					return err
				}
			}
			return nil
		},
	}

	return cmd
}
