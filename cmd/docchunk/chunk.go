package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/dgallion1/docchunk/internal/parser"
	"github.com/dgallion1/docchunk/internal/pipeline"
	"github.com/dgallion1/docchunk/internal/render"
)

var (
	chunkParallel int
	chunkSummary  bool
	chunkCompact  bool
)

var chunkCmd = &cobra.Command{
	Use:   "chunk <file>...",
	Short: "Chunk documents and print the nodes as JSON",
	Long: `Parse each file, build the hierarchy, split oversize nodes and validate the
result. One JSON document per input is written to stdout. With --summary a
stats box and heading outline per document are written to stderr as well.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		p, err := newPipeline()
		if err != nil {
			return err
		}

		opts := parser.Options{PDFFallbackPdftotext: cfg.PDFFallbackPdftotext}
		results, runErr := p.RunFiles(cmd.Context(), args, chunkParallel, opts)

		enc := json.NewEncoder(cmd.OutOrStdout())
		if !chunkCompact {
			enc.SetIndent("", "  ")
		}
		failed := 0
		for _, fr := range results {
			if fr.Err != nil {
				failed++
				fmt.Fprintf(cmd.ErrOrStderr(), "%s: %v\n", fr.Path, fr.Err)
				continue
			}
			if fr.Result == nil {
				continue // not started before cancellation
			}
			out := pipeline.FilterResult(fr.Result, cfg.MinHeadingConfidence)
			if err := enc.Encode(out); err != nil {
				return fmt.Errorf("write %s: %w", fr.Path, err)
			}
			if chunkSummary {
				render.Summary(cmd.ErrOrStderr(), fr.Path, out)
				render.Outline(cmd.ErrOrStderr(), out.Nodes)
			}
		}
		if runErr != nil {
			return runErr
		}
		if failed > 0 {
			return fmt.Errorf("%d of %d documents failed", failed, len(args))
		}
		return nil
	},
}

func init() {
	chunkCmd.Flags().IntVarP(&chunkParallel, "parallel", "p", 4, "Documents processed at once")
	chunkCmd.Flags().BoolVarP(&chunkSummary, "summary", "s", false, "Print a stats box and heading outline per document to stderr")
	chunkCmd.Flags().BoolVar(&chunkCompact, "compact", false, "One JSON document per line")
	rootCmd.AddCommand(chunkCmd)
}
