package cli

import (
	"github.com/spf13/cobra"
)

// NewPublishCmd creates the publish command
func NewPublishCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "publish [distribution...]",
		Short: "Rebuild, sign and atomically publish distributions",
		Long: `Rebuilds the Packages indices of each distribution, composes and signs
its Release manifest and swaps the complete artifact set into the
served path. Without arguments every configured distribution is
published. A failed publish leaves the previously published state
serving.`,
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
				if err := r.Publish(cmd.Context(), dist); err != nil {
					return err
				}
			}
			return nil
		},
	}

	return cmd
}
