// Command policy-rag compares internal policies against global regulations
// with retrieval-augmented generation.
package main

import (
	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"policy-rag/internal/config"
	"policy-rag/internal/logger"
)

var (
	configFilePath string
	cfg            *config.Config
)

var rootCmd = &cobra.Command{
	Use:   "policy-rag",
	Short: "Policy gap analysis against global regulations",
	Long: `policy-rag indexes a corpus of internal policies and a corpus of global
regulations, then asks a language model to compare them.

Run "policy-rag serve" for the HTTP API, or use the analyze, compare and
index commands directly from the shell.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// .env is optional
		_ = godotenv.Load()

		loaded, err := config.Load(configFilePath)
		if err != nil {
			return err
		}
		if err := logger.Setup(loaded.Logging.Level, loaded.Logging.Format); err != nil {
			return err
		}
		cfg = loaded
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configFilePath, "config", "./configs/config.yaml", "Path to the YAML config file")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		log.Fatal().Err(err).Msg("Command failed")
	}
}
