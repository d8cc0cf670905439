package cli

import (
	"fmt"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

// NewRemoveCmd creates the remove command
func NewRemoveCmd() *cobra.Command {
	var (
		distribution string
		component    string
		version      string
	)

	cmd := &cobra.Command{
		Use:   "remove [flags] <name> <architecture>",
		Short: "Remove package records from a component",
		Long: `Removes the records of a package slot from a (distribution, component).
Without --version every recorded version is removed. Pool files are
kept; the change becomes visible with the next publish.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			r, _, err := openRepository(cmd)
			if err != nil {
				return err
			}

			removed, err := r.Remove(distribution, component, args[0], version, args[1])
			if err != nil {
				return err
			}
			if removed == 0 {
				return fmt.Errorf("no matching records in %s/%s", distribution, component)
			}
			logrus.Infof("Removed %d record(s); run publish to update the served indices", removed)
			return nil
		},
	}

	cmd.Flags().StringVarP(&distribution, "dist", "d", "stable", "Distribution to remove from")
	cmd.Flags().StringVarP(&component, "component", "C", "main", "Component to remove from")
	cmd.Flags().StringVar(&version, "version", "", "Specific version to remove (default: all)")

	return cmd
}
