package main

import (
	"fmt"
	"os"
	_ "time/tzdata"

	"github.com/spf13/cobra"

	"wablast/internal/config"
)

var cfgPath string

var rootCmd = &cobra.Command{
	Use:   "wablast",
	Short: "Scheduled WhatsApp broadcast service",
	Long: `wablast stores recurring and one-shot broadcast jobs, fires them on
schedule in the configured timezone and delivers each message through a
rate-limited gateway.

Examples:
  wablast serve --config ./config.yaml
  wablast jobs list
  wablast config check`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return config.LoadDotEnv()
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgPath, "config", "c", "./config.json", "path to config (json or yaml)")
	rootCmd.AddCommand(serveCmd, jobsCmd, configCmd, versionCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "fatal:", err)
		os.Exit(1)
	}
}
