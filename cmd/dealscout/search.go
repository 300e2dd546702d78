package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/use-agent/dealscout/models"
	"github.com/use-agent/dealscout/search"
)

var searchCmd = &cobra.Command{
	Use:   "search QUERY",
	Short: "Run one search and print the records",
	Long: `Search runs a single aggregation in-process and prints the merged
records to stdout. Logs go to stderr.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runSearch,
}

func init() {
	searchCmd.Flags().StringP("platforms", "p", "", "comma-separated platforms (default: configured defaults)")
	searchCmd.Flags().StringP("output", "o", "json", "output format: json or yaml")
}

func runSearch(cmd *cobra.Command, args []string) error {
	output, _ := cmd.Flags().GetString("output")
	if output != "json" && output != "yaml" {
		return fmt.Errorf("unsupported output format %q", output)
	}

	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	initLogger(cfg.Log, os.Stderr)

	raw, _ := cmd.Flags().GetString("platforms")
	platforms, unknown := search.ParsePlatforms(raw)
	if len(unknown) > 0 {
		fmt.Fprintf(os.Stderr, "ignoring unknown platforms: %s\n", strings.Join(unknown, ", "))
	}
	if raw != "" && len(platforms) == 0 {
		return writeRecords(cmd.OutOrStdout(), output, []models.ProductRecord{})
	}

	st, err := buildStack(cfg)
	if err != nil {
		return err
	}
	defer st.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	res, err := st.aggregator.Search(ctx, strings.Join(args, " "), platforms)
	if err != nil {
		return err
	}
	if res.Sampled {
		fmt.Fprintln(os.Stderr, "no live results; showing sample records")
	}
	return writeRecords(cmd.OutOrStdout(), output, res.Products)
}

// writeRecords prints records as indented JSON or YAML.
func writeRecords(w io.Writer, format string, records []models.ProductRecord) error {
	switch format {
	case "yaml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(records); err != nil {
			return fmt.Errorf("encode yaml: %w", err)
		}
		return enc.Close()
	default:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		enc.SetEscapeHTML(false)
		return enc.Encode(records)
	}
}
