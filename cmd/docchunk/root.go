package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/dgallion1/docchunk/internal/config"
	"github.com/dgallion1/docchunk/internal/pipeline"
	"github.com/dgallion1/docchunk/internal/version"
)

var (
	flagMaxTokens     int
	flagOverlap       int
	flagStrategy      string
	flagEncoding      string
	flagNoValidate    bool
	flagMinConfidence float64
	flagPdftotext     bool

	// cfg is loaded from the environment, then overridden by flags.
	cfg config.Config
)

var rootCmd = &cobra.Command{
	Use:   "docchunk",
	Short: "Split documents into hierarchical, token-bounded chunks",
	Long: `docchunk parses Markdown, HTML, PDF, DOCX, CSV and plain text into a flat,
ordered collection of parent-linked nodes. Oversize nodes are split at token
boundaries and the hierarchy is checked for orphans, cycles and depth errors.

Defaults come from the environment (MAX_TOKENS_PER_NODE, OVERLAP_TOKENS,
TOKEN_STRATEGY, ...) and may be overridden with flags.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		loaded, err := config.Load()
		if err != nil {
			return err
		}
		cfg = loaded

		flags := cmd.Flags()
		if flags.Changed("max-tokens") {
			cfg.MaxTokensPerNode = flagMaxTokens
		}
		if flags.Changed("overlap") {
			cfg.OverlapTokens = flagOverlap
		}
		if flags.Changed("strategy") {
			cfg.TokenStrategy = flagStrategy
		}
		if flags.Changed("encoding") {
			cfg.TokenEncoding = flagEncoding
		}
		if flags.Changed("no-validate") {
			cfg.ValidateOutput = !flagNoValidate
		}
		if flags.Changed("min-confidence") {
			cfg.MinHeadingConfidence = flagMinConfidence
		}
		if flags.Changed("pdftotext") {
			cfg.PDFFallbackPdftotext = flagPdftotext
		}
		return cfg.CheckChunking()
	},
}

func init() {
	rootCmd.Version = version.Version
	rootCmd.SetVersionTemplate(fmt.Sprintf("docchunk %s\n", version.String()))

	pf := rootCmd.PersistentFlags()
	pf.IntVar(&flagMaxTokens, "max-tokens", 500, "Token ceiling before a node is split")
	pf.IntVar(&flagOverlap, "overlap", 50, "Tokens shared by consecutive split pieces")
	pf.StringVar(&flagStrategy, "strategy", "approximate", "Token counting strategy (approximate|exact)")
	pf.StringVar(&flagEncoding, "encoding", "cl100k_base", "BPE encoding for the exact strategy")
	pf.BoolVar(&flagNoValidate, "no-validate", false, "Skip the hierarchy validator")
	pf.Float64Var(&flagMinConfidence, "min-confidence", 0, "Drop inferred headings below this confidence (0 = keep all)")
	pf.BoolVar(&flagPdftotext, "pdftotext", true, "Fall back to pdftotext when PDF extraction yields no text")
}

// newPipeline builds the core pipeline from the resolved configuration.
func newPipeline() (*pipeline.Pipeline, error) {
	return pipeline.New(pipeline.FromConfig(cfg))
}

// Execute runs the root command. An interrupt cancels work between
// documents.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
