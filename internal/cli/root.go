package cli

import (
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/aptforge/aptforge/internal/config"
	"github.com/aptforge/aptforge/internal/repo"
	"github.com/aptforge/aptforge/internal/signer"
)

// NewRootCmd creates the root command
func NewRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "aptforge",
		Short: "Manage and publish a Debian-style package repository",
		Long: `Aptforge ingests .deb packages into a pool, builds the Packages
indices and Release manifest natively, signs them with an OpenPGP key
and publishes the result atomically so it can be served as a static
apt repository.`,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			verbose, _ := cmd.Flags().GetBool("verbose")
			if verbose {
				logrus.SetLevel(logrus.DebugLevel)
			} else {
				logrus.SetLevel(logrus.InfoLevel)
			}
		},
	}

	// Global flags
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "Enable verbose logging")
	rootCmd.PersistentFlags().StringP("config", "c", "", "Path to repository config file (YAML)")
	rootCmd.PersistentFlags().StringP("root", "r", "", "Repository root directory (when no config file is used)")
	rootCmd.PersistentFlags().StringP("gpg-keyring", "k", "", "Path to GPG keyring with the signing key")
	rootCmd.PersistentFlags().String("gpg-key", "", "Signing key identifier (fingerprint or key id)")
	rootCmd.PersistentFlags().StringP("gpg-passphrase", "p", "", "Signing key passphrase")

	// Subcommands
	rootCmd.AddCommand(NewAddCmd())
	rootCmd.AddCommand(NewPublishCmd())
	rootCmd.AddCommand(NewRemoveCmd())
	rootCmd.AddCommand(NewListCmd())
	rootCmd.AddCommand(NewVerifyCmd())
	rootCmd.AddCommand(NewSignPackageCmd())
	rootCmd.AddCommand(NewExportKeyCmd())

	return rootCmd
}

// loadConfig assembles the repository config from the config file or, in
// its absence, from flags over the defaults.
func loadConfig(cmd *cobra.Command) (config.Config, error) {
	if path, _ := cmd.Flags().GetString("config"); path != "" {
		cfg, err := config.Load(path)
		if err != nil {
			return config.Config{}, err
		}
		overlayFlags(cmd, &cfg)
		return cfg, cfg.Validate()
	}

	cfg := config.Default()
	cfg.RootDir, _ = cmd.Flags().GetString("root")
	overlayFlags(cmd, &cfg)
	return cfg, cfg.Validate()
}

func overlayFlags(cmd *cobra.Command, cfg *config.Config) {
	if v, _ := cmd.Flags().GetString("gpg-keyring"); v != "" {
		cfg.GPGKeyring = v
	}
	if v, _ := cmd.Flags().GetString("gpg-key"); v != "" {
		cfg.GPGKeyID = v
	}
	if v, _ := cmd.Flags().GetString("gpg-passphrase"); v != "" {
		cfg.GPGPassphrase = v
	}
}

// openRepository opens the configured repository, wiring up the GPG
// signer when a keyring is configured.
func openRepository(cmd *cobra.Command) (*repo.Repository, config.Config, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, config.Config{}, err
	}

	var sig signer.Signer
	if cfg.GPGKeyring != "" {
		gpg, err := signer.NewGPGSigner(cfg.GPGKeyring, cfg.GPGKeyID, cfg.GPGPassphrase)
		if err != nil {
			return nil, config.Config{}, err
		}
		logrus.Debugf("Signing with key %s", gpg.Fingerprint())
		sig = gpg
	}

	r, err := repo.Open(cfg, sig)
	if err != nil {
		return nil, config.Config{}, err
	}
	return r, cfg, nil
}
