package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/zjrosen/lumen/internal/config"
)

func newInitCmd(_ *app) *cobra.Command {
	var local, force bool
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a commented default config file",
		Long: `Write the default configuration to ~/.config/lumen/config.yaml, or to
.lumen/config.yaml in the current directory with --local.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			path := userConfigPath()
			if local {
				path = localConfigPath
			}
			if fileExists(path) && !force {
				return fmt.Errorf("%s already exists (use --force to overwrite)", path)
			}
			if err := config.WriteDefaultConfig(path); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %s\n", path)
			return nil
		},
	}
	cmd.Flags().BoolVar(&local, "local", false, "write .lumen/config.yaml in the current directory")
	cmd.Flags().BoolVarP(&force, "force", "f", false, "overwrite an existing file")
	return cmd
}

// userConfigPath returns ~/.config/lumen/config.yaml, or the local path
// when the home directory is unknown.
func userConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return localConfigPath
	}
	return filepath.Join(home, ".config", "lumen", "config.yaml")
}
