package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

// NewListCmd creates the list command
func NewListCmd() *cobra.Command {
	var (
		distribution string
		component    string
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List the active records of a component",
		RunE: func(cmd *cobra.Command, args []string) error {
			r, _, err := openRepository(cmd)
			if err != nil {
				return err
			}

			records := r.List(distribution, component)
			if len(records) == 0 {
				fmt.Printf("No packages in %s/%s\n", distribution, component)
				return nil
			}

			for _, rec := range records {
				fmt.Printf("%-30s %-20s %-8s %s\n", rec.Name, rec.Version, rec.Architecture, rec.Filename)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&distribution, "dist", "d", "stable", "Distribution to list")
	cmd.Flags().StringVarP(&component, "component", "C", "main", "Component to list")

	return cmd
}
