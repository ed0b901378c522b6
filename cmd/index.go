package main

import (
	"fmt"
	"os"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"policy-rag/internal/config"
	"policy-rag/internal/helper"
	"policy-rag/internal/models"
)

var (
	exportIndex bool
	resetIndex  bool
)

var indexCmd = &cobra.Command{
	Use:   "index",
	Short: "Build the vector indices for both corpora",
	Long: `Build the vector indices for both corpora and print their statistics.

With --export the chromem collections are also written to the store path,
encrypted when rag.encryption_key is set. With --reset the pgvector chunk
table is dropped and recreated before building.`,
	Args: cobra.NoArgs,
	RunE: runIndex,
}

func init() {
	indexCmd.Flags().BoolVar(&exportIndex, "export", false, "Export the chromem collections after building")
	indexCmd.Flags().BoolVar(&resetIndex, "reset", false, "Drop and recreate the pgvector chunk table first")
	rootCmd.AddCommand(indexCmd)
}

func runIndex(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	a, err := newApp(ctx, cfg, false)
	if err != nil {
		return err
	}
	defer a.Close()

	if resetIndex {
		if a.pg == nil {
			return fmt.Errorf("--reset requires the %s backend", config.BackendPgvector)
		}
		if err := a.pg.Reset(ctx); err != nil {
			return err
		}
		log.Info().Msg("Reset chunk table")
	}

	if err := a.initialize(ctx); err != nil {
		return err
	}

	if exportIndex {
		if a.chromem == nil {
			return fmt.Errorf("--export requires the chromem backend")
		}
		if err := helper.CreateFolder(cfg.Corpus.StorePath); err != nil {
			return err
		}
		for _, name := range models.Corpora {
			path, err := a.chromem.Export(name)
			if err != nil {
				return err
			}
			log.Info().Str("corpus", string(name)).Str("file", path).Msg("Exported collection")
		}
	}

	helper.PrettyPrint(os.Stdout, a.manager.Stats())
	return nil
}
