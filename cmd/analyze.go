package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"policy-rag/internal/helper"
	"policy-rag/internal/models"
	"policy-rag/internal/parser"
	"policy-rag/internal/rag"
)

var (
	analyzeText    string
	analyzeFile    string
	analyzeUseCase string
	analyzeCIS     bool
	analyzeLang    string
	analyzeHTML    bool
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze",
	Short: "Run a gap or use-case analysis",
	Long: `Run a single analysis and print the report.

Examples:
  policy-rag analyze --text "Passwords rotate every 90 days."
  policy-rag analyze --file policy.pdf --lang fr
  policy-rag analyze --use-case 5 --cis`,
	Args: cobra.NoArgs,
	RunE: runAnalyze,
}

func init() {
	analyzeCmd.Flags().StringVar(&analyzeText, "text", "", "Policy text to analyze")
	analyzeCmd.Flags().StringVar(&analyzeFile, "file", "", "Policy document to analyze (pdf, docx, pptx, xlsx, txt, md)")
	analyzeCmd.Flags().StringVar(&analyzeUseCase, "use-case", "", "Use case to score against internal policies")
	analyzeCmd.Flags().BoolVar(&analyzeCIS, "cis", false, "Treat --use-case as a CIS control identifier")
	analyzeCmd.Flags().StringVar(&analyzeLang, "lang", "en", "Report language (en, fr)")
	analyzeCmd.Flags().BoolVar(&analyzeHTML, "html", false, "Print the analysis rendered as HTML")
	analyzeCmd.MarkFlagsMutuallyExclusive("text", "file", "use-case")
	analyzeCmd.MarkFlagsOneRequired("text", "file", "use-case")
	rootCmd.AddCommand(analyzeCmd)
}

func runAnalyze(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	if analyzeCIS && analyzeUseCase == "" {
		return errors.New("--cis requires --use-case")
	}
	lang, err := models.ParseLanguage(analyzeLang)
	if err != nil {
		return err
	}

	a, err := newApp(ctx, cfg, true)
	if err != nil {
		return err
	}
	defer a.Close()

	if err := a.initialize(ctx); err != nil {
		return err
	}

	var report *models.Report
	switch {
	case analyzeFile != "":
		docs, err := parser.LoadFile(analyzeFile)
		if err != nil {
			return err
		}
		report, err = a.policies.AnalyzeDocuments(ctx, docs, lang)
		if err != nil {
			return err
		}
	case analyzeUseCase != "":
		report, err = a.useCases.Analyze(ctx, rag.UseCase{Text: analyzeUseCase, IsCIS: analyzeCIS}, lang)
		if err != nil {
			return err
		}
	default:
		report, err = a.policies.AnalyzeText(ctx, analyzeText, lang)
		if err != nil {
			return err
		}
	}

	if analyzeHTML {
		out, err := rag.RenderHTML(report)
		if err != nil {
			return err
		}
		fmt.Fprint(os.Stdout, out)
		return nil
	}
	helper.PrettyPrint(os.Stdout, report)
	return nil
}
