package cli

import (
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/aptforge/aptforge/internal/scanner"
)

// NewAddCmd creates the add command
func NewAddCmd() *cobra.Command {
	var (
		distribution string
		component    string
		publish      bool
	)

	cmd := &cobra.Command{
		Use:   "add [flags] <file-or-dir>...",
		Short: "Ingest .deb packages into the repository",
		Long: `Inspects each given .deb file (directories are scanned recursively),
stores the archives in the pool and records them for the target
distribution and component. Records become visible with the next
publish; pass --publish to publish immediately.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			r, _, err := openRepository(cmd)
			if err != nil {
				return err
			}

			var paths []string
			for _, arg := range args {
				info, err := os.Stat(arg)
				if err != nil {
					return err
				}
				if info.IsDir() {
					found, err := scanner.Scan(cmd.Context(), arg)
					if err != nil {
						return err
					}
					for _, f := range found {
						paths = append(paths, f.Path)
					}
					continue
				}
				paths = append(paths, arg)
			}

			if len(paths) == 0 {
				logrus.Warn("No packages found")
				return nil
			}

			for _, path := range paths {
				data, err := os.ReadFile(path)
				if err != nil {
					return err
				}
				record, err := r.Ingest(cmd.Context(), data, distribution, component)
				if err != nil {
					return fmt.Errorf("cannot ingest %s: %w", path, err)
				}
				logrus.Debugf("Recorded %s at %s", record.Identity(), record.Filename)
			}

			if publish {
				return r.Publish(cmd.Context(), distribution)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&distribution, "dist", "d", "stable", "Target distribution")
	cmd.Flags().StringVarP(&component, "component", "C", "main", "Target component")
	cmd.Flags().BoolVar(&publish, "publish", false, "Publish the distribution after ingesting")

	return cmd
}
