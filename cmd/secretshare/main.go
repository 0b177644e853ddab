// Package main - secretshare server binary
package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/alwitt/secretshare/config"
	"github.com/apex/log"
	jsonHandler "github.com/apex/log/handlers/json"
	textHandler "github.com/apex/log/handlers/text"
	"github.com/spf13/cobra"
)

var (
	cfgFile string
	appCfg  config.Config
)

var rootCmd = &cobra.Command{
	Use:   "secretshare",
	Short: "Share secrets through expiring, view limited links",
	Long: `Secrets are encrypted at rest, expire after a number of days, and can be limited
to a number of views. Unlocking can additionally require a password and a one-time
code delivered by email.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		if appCfg, err = config.Load(cfgFile); err != nil {
			return err
		}
		return setupLogging(appCfg.Log)
	},
}

func setupLogging(cfg config.LogConfig) error {
	level, err := log.ParseLevel(strings.ToLower(cfg.Level))
	if err != nil {
		return fmt.Errorf("invalid log level '%s' [%w]", cfg.Level, err)
	}
	log.SetLevel(level)
	if cfg.JSON {
		log.SetHandler(jsonHandler.New(os.Stderr))
	} else {
		log.SetHandler(textHandler.New(os.Stderr))
	}
	return nil
}

func init() {
	rootCmd.PersistentFlags().StringVar(
		&cfgFile,
		"config",
		"",
		fmt.Sprintf("YAML config file. Every key can be overridden with %s_* env vars.", config.EnvPrefix),
	)
	rootCmd.AddCommand(serveCmd, migrateCmd, sweepCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
