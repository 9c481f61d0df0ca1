// Package cmd wires the command line interface of the ID scanner.
package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/AMEND09/ID-Scanner/cmd/records"
	"github.com/AMEND09/ID-Scanner/cmd/scan"
	"github.com/AMEND09/ID-Scanner/cmd/serve"
	"github.com/AMEND09/ID-Scanner/cmd/sheets"
	"github.com/AMEND09/ID-Scanner/cmd/signin"
	"github.com/AMEND09/ID-Scanner/cmd/signout"
	"github.com/AMEND09/ID-Scanner/cmd/version"
	"github.com/AMEND09/ID-Scanner/internal/buildinfo"
	"github.com/AMEND09/ID-Scanner/internal/conf"
	"github.com/AMEND09/ID-Scanner/internal/logger"
	"github.com/AMEND09/ID-Scanner/internal/telemetry"
)

// RootCommand creates and returns the root command. settings is filled from the config
// file before any subcommand runs.
func RootCommand(settings *conf.Settings, build *buildinfo.Context) *cobra.Command {
	var debug bool

	rootCmd := &cobra.Command{
		Use:           "idscanner",
		Short:         "ID card attendance scanner",
		Long:          "Scan student ID cards and log attendance rows to a Google Sheet.",
		SilenceUsage:  true,
		SilenceErrors: false,
	}

	// Set up the global flags for the root command.
	if err := setupFlags(rootCmd, &debug); err != nil {
		GetLogger().Warn("failed to bind flags", logger.Error(err))
	}

	versionCmd := version.Command(build)

	rootCmd.AddCommand(
		signin.Command(settings),
		signout.Command(settings),
		sheets.Command(settings),
		scan.Command(settings),
		serve.Command(settings, build),
		records.Command(settings),
		versionCmd,
	)

	rootCmd.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		// Skip setup for the version command
		if cmd.Name() == versionCmd.Name() {
			return nil
		}
		return initialize(settings, debug, build)
	}

	return rootCmd
}

// GetLogger returns the cli module logger.
func GetLogger() logger.Logger {
	return logger.Global().Module("cli")
}

// initialize loads the configuration, then sets up logging and error reporting.
func initialize(settings *conf.Settings, debug bool, build *buildinfo.Context) error {
	loaded, err := conf.Load()
	if err != nil {
		return err
	}
	*settings = *loaded
	if debug {
		settings.Debug = true
	}

	if settings.Debug {
		settings.Logging.DefaultLevel = "debug"
		if settings.Logging.Console != nil {
			settings.Logging.Console.Level = "debug"
		}
	}
	if settings.Logging.Timezone == "" {
		settings.Logging.Timezone = settings.Main.Timezone
	}

	central, err := logger.NewCentralLogger(&settings.Logging)
	if err != nil {
		return fmt.Errorf("failed to set up logging: %w", err)
	}
	logger.SetGlobal(central)

	if err := telemetry.InitSentry(&settings.Sentry, build.GetVersion()); err != nil {
		GetLogger().Warn("error reporting disabled", logger.Error(err))
	}
	return nil
}

// setupFlags defines flags that are global to the command line interface
func setupFlags(rootCmd *cobra.Command, debug *bool) error {
	rootCmd.PersistentFlags().BoolVarP(debug, "debug", "d", viper.GetBool("debug"), "Enable debug output")
	rootCmd.PersistentFlags().String("config", "", "Path to the config file (default searches ~/.config/idscanner and /etc/idscanner)")

	if err := viper.BindPFlag("config", rootCmd.PersistentFlags().Lookup("config")); err != nil {
		return fmt.Errorf("error binding flags: %w", err)
	}
	return nil
}
