package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"magnetpress/internal/assemble"
	"magnetpress/internal/catalog"
	"magnetpress/internal/config"
	"magnetpress/internal/ledger"
	"magnetpress/internal/logging"
	"magnetpress/internal/match"
	"magnetpress/internal/pipeline"
	"magnetpress/internal/render"
)

var (
	// Global flags
	configPath string
	verbose    bool

	cfg    *config.Config
	logger *zap.Logger
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "magnetpress",
	Short: "magnetpress - personalized magnet order fulfillment",
	Long: `magnetpress turns raw marketplace order text into print-ready PDFs.

It parses order exports, matches each requested character against the
image library (with an AI assist for misspelled names), draws the
customer's name along the magnet's arc, and lays the finished faces
two per sheet into a master PDF for the print run.

A completion ledger keeps re-runs safe: orders already fulfilled are
skipped, so feeding the same export twice never double-prints.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load(configPath)
		if err != nil {
			return err
		}
		if err := cfg.Validate(); err != nil {
			return fmt.Errorf("invalid config: %w", err)
		}

		logger, err = logging.New(cfg.Logging, verbose)
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "magnetpress.yaml", "config file path")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(validateCmd)
	rootCmd.AddCommand(ordersCmd)
	rootCmd.AddCommand(ledgerCmd)
}

// buildPipeline wires the stages from the loaded config.
func buildPipeline() (*pipeline.Pipeline, *ledger.Ledger, error) {
	cat, err := catalog.Scan(cfg.Assets.Dir, logger)
	if err != nil {
		return nil, nil, fmt.Errorf("scan asset library: %w", err)
	}
	logger.Info("asset library loaded",
		zap.String("dir", cfg.Assets.Dir), zap.Int("assets", cat.Len()))

	led, err := ledger.Load(cfg.Ledger.Path, logger)
	if err != nil {
		// Corrupt or unreadable ledger: the run continues on an empty
		// one, but the operator has to know re-prints are possible.
		fmt.Fprintf(os.Stderr, "warning: %v\n", err)
	}

	var client match.Client
	if cfg.Matcher.APIKey != "" {
		client, err = match.NewClientFromConfig(match.ProviderConfig{
			Provider: cfg.Matcher.Provider,
			APIKey:   cfg.Matcher.APIKey,
			BaseURL:  cfg.Matcher.BaseURL,
			Timeout:  cfg.MatcherTimeout(),
		}, logger)
		if err != nil {
			return nil, nil, err
		}
	} else {
		logger.Warn("no matcher API key configured, exact lookups only")
	}

	opts := match.DefaultOptions()
	opts.FastThreshold = cfg.Matcher.FastThreshold
	opts.Timeout = cfg.MatcherTimeout()
	if cfg.Matcher.FastModel != "" {
		opts.FastModel = cfg.Matcher.FastModel
	}
	if cfg.Matcher.ThoroughModel != "" {
		opts.ThoroughModel = cfg.Matcher.ThoroughModel
	}
	matcher := match.New(cat, client, opts, logger)

	renderer := render.New(render.Config{
		PrimaryFont: cfg.Render.PrimaryFont,
		ScriptFont:  cfg.Render.ScriptFont,
	}, logger)

	assembler := assemble.New(cfg.Assembly.Template, cfg.Assembly.OutputDir, assemble.Slots{
		X:       cfg.Assembly.SlotX,
		TopY:    cfg.Assembly.TopSlotY,
		BottomY: cfg.Assembly.BottomSlotY,
		Scale:   cfg.Assembly.SlotScale,
	}, logger)

	if err := os.MkdirAll(cfg.Render.OutputDir, 0755); err != nil {
		return nil, nil, fmt.Errorf("create output dir: %w", err)
	}

	return pipeline.New(led, matcher, renderer, assembler, cfg.Render.OutputDir, logger), led, nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
