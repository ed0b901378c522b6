package main

import (
	"os"

	"github.com/spf13/cobra"

	"policy-rag/internal/helper"
	"policy-rag/internal/rag"
)

var compareTopK int

var compareCmd = &cobra.Command{
	Use:   "compare",
	Short: "Report global regulations without an internal counterpart",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()
		a, err := newApp(ctx, cfg, false)
		if err != nil {
			return err
		}
		defer a.Close()

		if err := a.initialize(ctx); err != nil {
			return err
		}
		k := compareTopK
		if k <= 0 {
			k = cfg.RAG.CompareTopK
		}
		report, err := rag.Compare(ctx, a.manager, k)
		if err != nil {
			return err
		}
		helper.PrettyPrint(os.Stdout, report)
		return nil
	},
}

func init() {
	compareCmd.Flags().IntVar(&compareTopK, "top-k", 0, "Chunks sampled from each corpus (default rag.compare_top_k)")
	rootCmd.AddCommand(compareCmd)
}
