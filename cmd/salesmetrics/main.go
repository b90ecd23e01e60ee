package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/tordrt/salesmetrics"
	"github.com/tordrt/salesmetrics/internal/config"
	"github.com/tordrt/salesmetrics/internal/formatter"
)

var (
	configPath string
	dbURL      string
	mysqlURL   string
	sqlitePath string
	schemaName string
	outputFile string
	outputDir  string
	format     string
	topN       int
	trendLimit int
	shards     int
	verbose    bool
)

var rootCmd = &cobra.Command{
	Use:   "salesmetrics",
	Short: "Compute sales analytics over a Northwind-style database",
	Long: `salesmetrics reconciles the column naming of a sales database with a canonical model,
derives per-order revenue and fulfillment metrics, and prints revenue rollups,
performance rankings and product revenue trends.`,
	SilenceUsage: true,
	RunE:         run,
}

var schemaCmd = &cobra.Command{
	Use:          "schema",
	Short:        "Print the observed columns and their canonical mapping without computing metrics",
	SilenceUsage: true,
	RunE:         runSchema,
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringVarP(&configPath, "config", "c", "", "TOML configuration file")
	flags.StringVar(&dbURL, "db-url", "", "PostgreSQL connection string")
	flags.StringVar(&mysqlURL, "mysql-url", "", "MySQL connection string")
	flags.StringVar(&sqlitePath, "sqlite", "", "SQLite database file path")
	flags.StringVarP(&schemaName, "schema", "s", "", "Database schema name (default: public for PostgreSQL)")
	flags.BoolVarP(&verbose, "verbose", "v", false, "Log resolved mappings and excluded rows")

	rootCmd.Flags().StringVarP(&outputFile, "output", "o", "", "Output file (default: stdout)")
	rootCmd.Flags().StringVarP(&outputDir, "output-dir", "d", "", "Output directory for one file per report table")
	rootCmd.Flags().StringVarP(&format, "format", "f", "text", "Output format: text, markdown or xlsx")
	rootCmd.Flags().IntVarP(&topN, "top", "n", 0, "Rows in top product/customer rankings (default from config, 10)")
	rootCmd.Flags().IntVar(&trendLimit, "trend-limit", 0, "Rows per product trend set (default from config, 20)")
	rootCmd.Flags().IntVar(&shards, "shards", 0, "Parallel workers (default: GOMAXPROCS)")

	rootCmd.AddCommand(schemaCmd)
}

// setup loads configuration, applies flag overrides and returns the database URL
func setup(cmd *cobra.Command) (string, *salesmetrics.Options, error) {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	cfg, err := config.Load(configPath)
	if err != nil {
		return "", nil, err
	}

	dbCount := 0
	for _, v := range []string{dbURL, mysqlURL, sqlitePath} {
		if v != "" {
			dbCount++
		}
	}
	if dbCount > 1 {
		return "", nil, fmt.Errorf("only one of --db-url, --mysql-url, or --sqlite can be specified")
	}

	url := cfg.Source.URL
	switch {
	case dbURL != "":
		url = dbURL
	case mysqlURL != "":
		url = "mysql://" + mysqlURL
	case sqlitePath != "":
		url = "sqlite://" + sqlitePath
	}
	if url == "" {
		return "", nil, fmt.Errorf("one of --db-url, --mysql-url, --sqlite, source.url or %s must be specified", config.EnvDatabaseURL)
	}

	opts := salesmetrics.OptionsFromConfig(cfg)
	opts.Logger = logger
	if cmd.Flags().Changed("schema") {
		opts.SchemaName = schemaName
	}
	if topN > 0 {
		opts.TopN = topN
	}
	if trendLimit > 0 {
		opts.TrendLimit = trendLimit
	}
	if shards > 0 {
		opts.Shards = shards
	}

	return url, opts, nil
}

func run(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	url, opts, err := setup(cmd)
	if err != nil {
		return err
	}

	if outputDir != "" && outputFile != "" {
		return fmt.Errorf("cannot use both --output-dir and --output flags")
	}

	r, err := salesmetrics.Analyze(ctx, url, opts)
	if err != nil {
		return err
	}

	outOpts := &salesmetrics.OutputOptions{OutputDir: outputDir, Format: format}
	if outputFile != "" {
		f, err := os.Create(outputFile)
		if err != nil {
			return fmt.Errorf("failed to create output file: %w", err)
		}
		defer func() {
			if err := f.Close(); err != nil {
				fmt.Fprintf(os.Stderr, "warning: failed to close output file: %v\n", err)
			}
		}()
		outOpts.Writer = f
	}

	if err := salesmetrics.FormatReport(r, outOpts); err != nil {
		return fmt.Errorf("failed to format output: %w", err)
	}
	return nil
}

func runSchema(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	url, opts, err := setup(cmd)
	if err != nil {
		return err
	}

	rep, err := salesmetrics.ResolveSchema(ctx, url, opts)
	if rep != nil {
		if ferr := formatter.FormatSchema(cmd.OutOrStdout(), rep.Observed, rep.Mappings); ferr != nil {
			return ferr
		}
	}
	return err
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
