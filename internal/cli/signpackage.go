package cli

import (
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/aptforge/aptforge/internal/utils"
)

// NewSignPackageCmd creates the sign-package command
func NewSignPackageCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sign-package <file>...",
		Short: "Create detached signatures for individual .deb files",
		Long: `Signs each given .deb file with the repository's signing key and
writes the armored detached signature next to it as <file>.asc, so the
package can be verified independently of the repository indices.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			r, _, err := openRepository(cmd)
			if err != nil {
				return err
			}

			for _, path := range args {
				data, err := os.ReadFile(path)
				if err != nil {
					return err
				}

				sig, err := r.SignArchive(data)
				if err != nil {
					return err
				}

				if err := utils.WriteFile(path+".asc", sig, 0644); err != nil {
					return err
				}
				logrus.Infof("Signed %s -> %s.asc", path, path)
			}
			return nil
		},
	}

	return cmd
}
