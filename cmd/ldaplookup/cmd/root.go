package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/hashicorp/go-hclog"
	"github.com/spf13/cobra"

	"github.com/isometry/terraform-provider-ldaplookup/internal/config"
	"github.com/isometry/terraform-provider-ldaplookup/internal/ldap"
	"github.com/isometry/terraform-provider-ldaplookup/internal/lookup"
)

var (
	cfgFile   string
	cfgFormat string
	envFile   string
	logLevel  string
	verbose   bool

	logger hclog.Logger = hclog.NewNullLogger()

	// newDirectory opens the directory used by search.
	newDirectory = func() lookup.Directory { return ldap.NewClient() }
)

var rootCmd = &cobra.Command{
	Use:   "ldaplookup",
	Short: "Search LDAP directories with layered lookup configuration",
	Long: `ldaplookup runs LDAP searches configured by layered settings: built-in
defaults, the defaults of a configuration file, LDAPLOOKUP_* environment
variables, a named context and per-call overrides.

Configuration files are YAML or TOML with the sections defaults, contexts,
variables and client.`,
	SilenceUsage:      true,
	PersistentPreRunE: setup,
}

// Execute runs the root command.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return rootCmd.ExecuteContext(ctx)
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "lookup configuration file (YAML or TOML)")
	rootCmd.PersistentFlags().StringVar(&cfgFormat, "config-format", "auto", "configuration file format: auto, yaml or toml")
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", "", "load environment variables from a .env file")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "warn", "log level: trace, debug, info, warn or error")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output (same as --log-level=debug)")
}

// setup configures logging and loads the .env file.
func setup(cmd *cobra.Command, _ []string) error {
	level := hclog.LevelFromString(logLevel)
	if level == hclog.NoLevel {
		return fmt.Errorf("invalid log level %q", logLevel)
	}
	if verbose {
		level = hclog.Debug
	}

	logger = hclog.New(&hclog.LoggerOptions{
		Name:   "ldaplookup",
		Level:  level,
		Output: cmd.ErrOrStderr(),
	})

	if envFile != "" {
		if err := config.LoadEnvFile(envFile); err != nil {
			return err
		}
		logger.Debug("loaded env file", "path", envFile)
	}
	return nil
}

// loadConfig loads the configuration file, or an empty configuration when
// none is given, and overlays the LDAPLOOKUP_* environment.
func loadConfig() (*config.File, lookup.Layer, error) {
	var (
		file *config.File
		err  error
	)
	if cfgFile == "" {
		file, err = config.Empty()
	} else {
		var format config.Format
		format, err = config.ParseFormat(cfgFormat)
		if err != nil {
			return nil, nil, err
		}
		file, err = config.Load(cfgFile, format)
	}
	if err != nil {
		return nil, nil, err
	}

	env, err := config.EnvLayer()
	if err != nil {
		return nil, nil, err
	}

	logger.Debug("loaded configuration",
		"path", cfgFile,
		"contexts", len(file.Contexts),
		"env_fields", len(env),
	)

	return file, config.Overlay(file.DefaultsLayer(), env), nil
}
