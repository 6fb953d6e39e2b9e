package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"wablast/internal/app"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Configuration helpers",
}

var configCheckCmd = &cobra.Command{
	Use:   "check",
	Short: "Parse and validate the config file, including environment overrides",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := app.CheckConfig(cfgPath)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "config ok: addr=%q storage=%q transport=%q timezone=%q\n",
			cfg.Server.Addr, cfg.Storage.Driver, cfg.Transport.Driver, cfg.Scheduler.Timezone)
		return nil
	},
}

func init() {
	configCmd.AddCommand(configCheckCmd)
}
