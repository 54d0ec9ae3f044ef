package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/dgallion1/docchunk/internal/parser"
	"github.com/dgallion1/docchunk/internal/render"
)

var validateParallel int

var validateCmd = &cobra.Command{
	Use:   "validate <file>...",
	Short: "Chunk documents and report hierarchy problems",
	Long: `Run the full pipeline with validation forced on and print every issue the
validator reports. Exits non-zero when any document has an error or a
critical issue; warnings alone do not fail.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg.ValidateOutput = true
		p, err := newPipeline()
		if err != nil {
			return err
		}

		opts := parser.Options{PDFFallbackPdftotext: cfg.PDFFallbackPdftotext}
		results, runErr := p.RunFiles(cmd.Context(), args, validateParallel, opts)

		w := cmd.OutOrStdout()
		bad := 0
		for _, fr := range results {
			if fr.Err != nil {
				bad++
				fmt.Fprintf(cmd.ErrOrStderr(), "%s: %v\n", fr.Path, fr.Err)
				continue
			}
			if fr.Result == nil {
				continue
			}
			render.Summary(w, fr.Path, fr.Result)
			render.Issues(w, fr.Result.Report)
			if fr.Result.Report.HasErrors() {
				bad++
			}
		}
		if runErr != nil {
			return runErr
		}
		if bad > 0 {
			return fmt.Errorf("%d of %d documents failed validation", bad, len(args))
		}
		return nil
	},
}

func init() {
	validateCmd.Flags().IntVarP(&validateParallel, "parallel", "p", 4, "Documents processed at once")
	rootCmd.AddCommand(validateCmd)
}
