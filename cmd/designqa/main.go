// designqa answers questions about the elements of a translated design.
//
// Usage:
//
//	designqa ask <urn> -q "Which wall has the largest area?"
//	designqa ask <urn> -i
//	designqa dump <urn> [--format csv|ascii|markdown]
//	designqa serve [--transport stdio|http] [--addr :8080]
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"design-props-rag/internal/config"
	"design-props-rag/internal/logging"
)

// version is set at build time via -ldflags.
var version = "dev"

var (
	cfg config.Config

	configPath string
	flagValues struct {
		logLevel   string
		logFormat  string
		store      string
		mode       string
		model      string
		ollama     string
		token      string
		category   string
		attributes []string
		maxRows    int
	}
)

var rootCmd = &cobra.Command{
	Use:   "designqa",
	Short: "Ask questions about the dimensional properties of a design",
	Long: `designqa extracts element properties from the Model Derivative service,
tabulates them and answers questions with a local Ollama model.

Settings come from designqa.yaml (or --config), then APS_* / OLLAMA_HOST /
DESIGNQA_STORE environment variables, then flags.`,
	CompletionOptions: cobra.CompletionOptions{
		HiddenDefaultCmd: true,
	},
	SilenceUsage:      true,
	PersistentPreRunE: loadConfig,
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&configPath, "config", "", "Path to config file (default ./designqa.yaml if present)")
	pf.StringVar(&flagValues.logLevel, "log-level", "", "Log level: debug, info, warn, error")
	pf.StringVar(&flagValues.logFormat, "log-format", "", "Log format: text or json")
	pf.StringVar(&flagValues.store, "store", "", "Table store: postgres:// URL or sqlite file path")
	pf.StringVar(&flagValues.mode, "mode", "", "Extraction mode: hierarchy, query or bulk")
	pf.StringVar(&flagValues.model, "model", "", "Ollama model for answering")
	pf.StringVar(&flagValues.ollama, "ollama", "", "Ollama host (default uses OLLAMA_HOST env var)")
	pf.StringVar(&flagValues.token, "token", "", "APS access token (default uses client credentials)")
	pf.StringVar(&flagValues.category, "category", "", "Property category to tabulate")
	pf.StringSliceVar(&flagValues.attributes, "attributes", nil, "Attributes to tabulate, comma separated")
	pf.IntVar(&flagValues.maxRows, "max-rows", 0, "Maximum number of table rows")

	rootCmd.AddCommand(askCmd)
	rootCmd.AddCommand(dumpCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.Version = version
}

func loadConfig(cmd *cobra.Command, _ []string) error {
	var err error
	cfg, err = config.Load(configPath)
	if err != nil {
		return err
	}

	changed := cmd.Flags().Changed
	if changed("log-level") {
		cfg.Log.Level = flagValues.logLevel
	}
	if changed("log-format") {
		cfg.Log.Format = flagValues.logFormat
	}
	if changed("store") {
		cfg.Store.DSN = flagValues.store
	}
	if changed("mode") {
		cfg.Extract.Mode = flagValues.mode
	}
	if changed("model") {
		cfg.Ollama.Model = flagValues.model
	}
	if changed("ollama") {
		cfg.Ollama.Host = flagValues.ollama
	}
	if changed("token") {
		cfg.APS.AccessToken = flagValues.token
	}
	if changed("category") {
		cfg.Table.Category = flagValues.category
	}
	if changed("attributes") {
		cfg.Table.Attributes = flagValues.attributes
	}
	if changed("max-rows") {
		cfg.Table.MaxRows = flagValues.maxRows
	}

	// stdout carries MCP traffic in stdio mode, so logs always go to stderr.
	logging.Init(logging.ParseLevel(cfg.Log.Level), cfg.Log.Format, os.Stderr)
	return nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
