package cli

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/ethpandaops/goxatu/internal/config"
)

func newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage the goxatu configuration",
	}
	cmd.AddCommand(newConfigInitCmd())
	cmd.AddCommand(newConfigShowCmd())
	return cmd
}

func newConfigInitCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Write a starter config file",
		RunE: func(cmd *cobra.Command, args []string) error {
			path := configPath
			if path == "" {
				var err error
				path, err = config.DefaultPath()
				if err != nil {
					return err
				}
			}

			if err := config.WriteTemplate(path); err != nil {
				return err
			}
			color.Green("Wrote %s", path)
			fmt.Println("Set clickhouse.url and credentials, or export CLICKHOUSE_URL, CLICKHOUSE_USER, CLICKHOUSE_PASSWORD.")
			return nil
		},
	}
}

func newConfigShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Show the effective configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}

			fmt.Printf("clickhouse.url: %s\n", cfg.ClickHouse.URL)
			fmt.Printf("clickhouse.user: %s\n", cfg.ClickHouse.User)
			fmt.Printf("clickhouse.database: %s\n", cfg.ClickHouse.Database)
			fmt.Printf("clickhouse.pool_size: %d\n", cfg.ClickHouse.PoolSize)
			fmt.Printf("clickhouse.max_retries: %d\n", cfg.ClickHouse.MaxRetries)
			fmt.Printf("relay endpoints: %d\n", len(cfg.Relay.Endpoints))
			fmt.Printf("log_level: %s\n", cfg.LogLevel)
			if cfg.ClickHouse.Password != "" {
				fmt.Println("clickhouse.password: (set)")
			}
			return nil
		},
	}
}
