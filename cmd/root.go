// Package cmd provides the sitecycle command-line interface.
//
// Configuration is resolved with this precedence, highest first:
//
//  1. command-line flags (--port, --production, ...)
//  2. SITECYCLE_<SECTION>_<OPTION> environment variables, then the
//     hosting platform's own names (NODE_ENV, VERCEL_URL, VERCEL_DEPLOY_HOOK)
//  3. a .env file in the working directory (never overrides the real
//     environment)
//  4. the config file: --config, SITECYCLE_CONFIG_FILE, or .sitecycle.yml
package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/conneroisu/sitecycle/internal/config"
	"github.com/conneroisu/sitecycle/internal/errors"
	"github.com/conneroisu/sitecycle/internal/logging"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "sitecycle",
	Short: "Build, serve and deploy a module-driven static site",
	Long: `sitecycle bundles a site's scripts and styles, serves them with live
reload while you work, and triggers the hosting platform's deploy hook.

Quick Start:
  sitecycle dev          Start the dev server with live reload
  sitecycle build        Bundle into the output directory with a manifest
  sitecycle deploy       Trigger a deployment
  sitecycle scan         Report data-module / data-cycle bindings of pages`,
	SilenceUsage: true,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is .sitecycle.yml, can also use SITECYCLE_CONFIG_FILE)")
	rootCmd.PersistentFlags().StringP("log-level", "l", "info", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().String("log-format", "text", "log format (text, json)")
	_ = viper.BindPFlag("log-level", rootCmd.PersistentFlags().Lookup("log-level"))
	_ = viper.BindPFlag("log-format", rootCmd.PersistentFlags().Lookup("log-format"))
}

func initConfig() {
	// Real environment variables win over .env entries.
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		fmt.Fprintln(os.Stderr, "Ignoring unreadable .env:", err)
	}

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else if envConfigFile := os.Getenv("SITECYCLE_CONFIG_FILE"); envConfigFile != "" {
		viper.SetConfigFile(envConfigFile)
	} else {
		viper.AddConfigPath(".")
		viper.SetConfigType("yaml")
		viper.SetConfigName(".sitecycle")
	}

	viper.SetEnvPrefix("SITECYCLE")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	viper.AutomaticEnv()
	config.BindEnvironment(viper.GetViper())

	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	}
}

// newLogger builds the command logger from --log-level and --log-format.
func newLogger(cmd *cobra.Command) logging.Logger {
	return logging.NewLogger(&logging.LoggerConfig{
		Level:  logging.ParseLevel(viper.GetString("log-level")),
		Format: viper.GetString("log-format"),
		Output: cmd.ErrOrStderr(),
	})
}

// loadConfig loads the effective configuration, wrapping failures as
// configuration errors.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, errors.WrapConfig(err, errors.ErrCodeValidationFailed, "failed to load configuration")
	}
	return cfg, nil
}
