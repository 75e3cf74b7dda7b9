package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/radlee/payments-api/config"
)

var (
	configPath string
	rootCmd    *cobra.Command
)

func init() {
	rootCmd = &cobra.Command{
		Use:   "paygate",
		Short: "paygate - minimal payments gateway",
		Long: `paygate serves the payments API (account lookup and idempotent, rate-limited debits)
and ships client commands that talk to a running instance.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Path to a YAML config file")
}

// Execute runs the root command
func Execute(version string) error {
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(tokenCmd)
	rootCmd.AddCommand(accountCmd)
	rootCmd.AddCommand(payCmd)

	rootCmd.Version = version
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		return err
	}
	return nil
}

func loadConfig() (*config.Config, error) {
	return config.Load(configPath)
}
