package config

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/skybound/skybound/internal/conf"
)

// Command creates the config command group.
func Command(settings *conf.Settings) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect and persist configuration",
	}
	cmd.AddCommand(writeCommand(settings))
	return cmd
}

func writeCommand(settings *conf.Settings) *cobra.Command {
	return &cobra.Command{
		Use:   "write [path]",
		Short: "Write the effective configuration as YAML",
		Long: "Write the configuration in effect, including flag and environment overrides, " +
			"to path. Without a path the config file in use is overwritten.",
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := targetPath(args)
			if err != nil {
				return err
			}
			if err := conf.SaveYAMLConfig(path, settings); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Configuration written to", path)
			return nil
		},
	}
}

// targetPath resolves where `config write` saves to.
func targetPath(args []string) (string, error) {
	if len(args) == 1 {
		return filepath.Clean(args[0]), nil
	}
	if path, err := conf.FindConfigFile(); err == nil {
		return path, nil
	}
	configPaths, err := conf.GetDefaultConfigPaths()
	if err != nil {
		return "", err
	}
	return filepath.Join(configPaths[0], "config.yaml"), nil
}
