// Package cli implements the goxatu command line interface.
package cli

import (
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/ethpandaops/goxatu/pkg/version"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:   "goxatu",
	Short: "Query beacon-chain telemetry data",
	Long: `goxatu queries Ethereum beacon-chain telemetry from a ClickHouse
backend: canonical blocks, missed slots, reorgs, attestations,
withdrawals, transactions, and blob sidecars, plus MEV relay bid
traces and historical mempool observations.

Credentials come from the config file (~/.goxatu/config.yaml by
default) or from CLICKHOUSE_URL, CLICKHOUSE_USER and
CLICKHOUSE_PASSWORD environment variables.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	// A local .env supplies credentials during development.
	if _, err := os.Stat(".env"); err == nil {
		_ = godotenv.Load()
	}

	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "config file path (default ~/.goxatu/config.yaml)")

	// Accept snake_case flag spellings, matching the config file keys.
	rootCmd.SetGlobalNormalizationFunc(func(f *pflag.FlagSet, name string) pflag.NormalizedName {
		return pflag.NormalizedName(strings.ReplaceAll(name, "_", "-"))
	})

	rootCmd.AddCommand(newQueryCmd())
	rootCmd.AddCommand(newSlotsCmd())
	rootCmd.AddCommand(newSchemaCmd())
	rootCmd.AddCommand(newConfigCmd())
	rootCmd.AddCommand(newVersionCmd())
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, args []string) {
			cmd.Printf("goxatu version %s\n", version.Version)
			cmd.Printf("Git commit: %s\n", version.GitCommit)
			cmd.Printf("Build date: %s\n", version.BuildDate)
			cmd.Printf("Go version: %s\n", version.GoVersion)
		},
	}
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}
