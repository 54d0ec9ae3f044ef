package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/dgallion1/docchunk/internal/detect"
	"github.com/dgallion1/docchunk/internal/render"
)

var detectJSON bool

type detection struct {
	Method     detect.Method `json:"method"`
	Confidence float64       `json:"confidence"`
	Depth      int           `json:"depth"`
	Node       any           `json:"node"`
}

var detectCmd = &cobra.Command{
	Use:   "detect <file>",
	Short: "Run the structural detector over plain text",
	Long: `Read a file as plain text and print what the structural detector infers for
each block: the heuristic that fired, its confidence and the nesting depth.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		data, err := os.ReadFile(args[0])
		if err != nil {
			return err
		}
		text := strings.ToValidUTF8(string(data), "�")
		results := detect.Detect(text, detect.Options{Source: args[0]})

		if !detectJSON {
			render.Detections(cmd.OutOrStdout(), results)
			return nil
		}
		out := make([]detection, len(results))
		for i, r := range results {
			out[i] = detection{Method: r.Method, Confidence: r.Confidence, Depth: r.Depth, Node: r.Node}
		}
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		if err := enc.Encode(out); err != nil {
			return fmt.Errorf("write detections: %w", err)
		}
		return nil
	},
}

func init() {
	detectCmd.Flags().BoolVar(&detectJSON, "json", false, "Print detections as JSON")
	rootCmd.AddCommand(detectCmd)
}
