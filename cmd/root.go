package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/skybound/skybound/cmd/auth"
	"github.com/skybound/skybound/cmd/birds"
	"github.com/skybound/skybound/cmd/config"
	"github.com/skybound/skybound/cmd/serve"
	"github.com/skybound/skybound/internal/buildinfo"
	"github.com/skybound/skybound/internal/conf"
)

// RootCommand creates and returns the root command
func RootCommand(settings *conf.Settings, info *buildinfo.Info) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "skybound",
		Short:         "SkyBound bird catalog administration",
		Version:       info.String(),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	// Set up the global flags for the root command.
	if err := setupFlags(rootCmd, settings); err != nil {
		// Flag binding only fails on programming errors
		panic(err)
	}

	subcommands := []*cobra.Command{
		serve.Command(settings, info),
		birds.Command(settings, info),
		config.Command(settings),
	}
	subcommands = append(subcommands, auth.Commands(settings, info)...)

	rootCmd.AddCommand(subcommands...)

	return rootCmd
}

// setupFlags defines flags that are global to the command line interface
func setupFlags(rootCmd *cobra.Command, settings *conf.Settings) error {
	rootCmd.PersistentFlags().BoolVarP(&settings.Debug, "debug", "d", viper.GetBool("debug"), "Enable debug output")
	rootCmd.PersistentFlags().StringVar(&settings.Backend.BaseURL, "backend", viper.GetString("backend.baseurl"), "Base URL of the catalog REST backend")
	rootCmd.PersistentFlags().DurationVar(&settings.Backend.Timeout, "timeout", viper.GetDuration("backend.timeout"), "Timeout of a single backend request")

	if err := viper.BindPFlag("debug", rootCmd.PersistentFlags().Lookup("debug")); err != nil {
		return fmt.Errorf("error binding flags: %w", err)
	}
	if err := viper.BindPFlag("backend.baseurl", rootCmd.PersistentFlags().Lookup("backend")); err != nil {
		return fmt.Errorf("error binding flags: %w", err)
	}
	if err := viper.BindPFlag("backend.timeout", rootCmd.PersistentFlags().Lookup("timeout")); err != nil {
		return fmt.Errorf("error binding flags: %w", err)
	}

	return nil
}
