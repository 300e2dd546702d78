package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/use-agent/dealscout/config"
	"github.com/use-agent/dealscout/models"
)

var rootCmd = &cobra.Command{
	Use:   "dealscout",
	Short: "Search Indian e-commerce sites for products in one request",
	Long: `Dealscout searches Amazon, JioMart, Myntra, Ajio and Flipkart in
parallel through a shared headless browser and returns one merged list
of normalized product records.

Examples:
  # Run the HTTP API (the default command)
  dealscout serve

  # Search once and print JSON
  dealscout search "running shoes" --platforms myntra,ajio

  # Same, as YAML
  dealscout search laptop -o yaml`,
	Version:       models.Version,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          runServe,
}

// flagEnv maps persistent flags onto the environment variables config.Load
// reads, so flags win over .env and the config file.
var flagEnv = map[string]string{
	"log-level":  "DEALSCOUT_LOG_LEVEL",
	"log-format": "DEALSCOUT_LOG_FORMAT",
	"fetch-mode": "DEALSCOUT_SEARCH_FETCH_MODE",
}

func init() {
	rootCmd.PersistentFlags().String("env-file", ".env", "dotenv file to load before reading configuration")
	rootCmd.PersistentFlags().String("log-level", "", "log level: debug, info, warn or error")
	rootCmd.PersistentFlags().String("log-format", "", "log format: text or json")
	rootCmd.PersistentFlags().String("fetch-mode", "", "page source: browser, http or auto")

	rootCmd.AddCommand(serveCmd, searchCmd)
}

// loadConfig applies explicitly set flags and loads the configuration.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	for flag, env := range flagEnv {
		f := cmd.Flags().Lookup(flag)
		if f != nil && f.Changed {
			if err := os.Setenv(env, f.Value.String()); err != nil {
				return nil, err
			}
		}
	}

	envFile, _ := cmd.Flags().GetString("env-file")
	cfg, err := config.Load(envFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return nil, err
	}
	return cfg, nil
}
