package cli

import (
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/aptforge/aptforge/internal/utils"
)

// NewExportKeyCmd creates the export-key command
func NewExportKeyCmd() *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "export-key",
		Short: "Export the armored public signing key",
		Long: `Writes the repository's public key in armored form, for clients to
install into their apt keyrings. Defaults to stdout.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			r, _, err := openRepository(cmd)
			if err != nil {
				return err
			}

			key, err := r.PublicKey()
			if err != nil {
				return err
			}

			if output == "" {
				_, err = os.Stdout.Write(key)
				return err
			}

			if err := utils.WriteFile(output, key, 0644); err != nil {
				return err
			}
			logrus.Infof("Public key exported to %s", output)
			return nil
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", "File to write the key to (default: stdout)")

	return cmd
}
