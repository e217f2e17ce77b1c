package commands

import (
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/kirillkom/mailbills-assistant/internal/bootstrap"
	"github.com/kirillkom/mailbills-assistant/internal/config"
	"github.com/kirillkom/mailbills-assistant/internal/core/domain"
	"github.com/kirillkom/mailbills-assistant/internal/observability/logging"
)

var (
	targetLang string
	uiLang     string
	exportPath string
)

var runCmd = &cobra.Command{
	Use:   "run FILE...",
	Short: "Extract and interpret the pages of one document",
	Long:  "Files are treated as the pages of one document, in the order given.",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runPipeline,
}

func init() {
	runCmd.Flags().StringVarP(&targetLang, "lang", "l", "", "language for the translated summary")
	runCmd.Flags().StringVar(&uiLang, "ui-lang", "", "language of the explanation")
	runCmd.Flags().StringVarP(&exportPath, "export", "o", "", "write the result as an xlsx workbook")
	rootCmd.AddCommand(runCmd)
}

func runPipeline(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg := config.Load()
	if fileTypes != "" {
		cfg.FileTypesPath = fileTypes
	}
	// A local run is never metered.
	cfg.FreeRuns = 0
	logger := logging.NewJSONLoggerTo(cmd.ErrOrStderr(), "mailbills-cli", logLevel)

	files, err := readFiles(args)
	if err != nil {
		return err
	}

	app, err := bootstrap.New(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("bootstrap: %w", err)
	}
	defer app.Close()

	run, runErr := app.Pipeline.Run(ctx, domain.Submission{
		Files:      files,
		TargetLang: targetLang,
		UILang:     uiLang,
	})
	if runErr != nil && run.ID == "" {
		return fmt.Errorf("%s", domain.UserMessage(runErr))
	}

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	if err := enc.Encode(run); err != nil {
		return err
	}
	if runErr != nil {
		return fmt.Errorf("%s", domain.UserMessage(runErr))
	}

	if exportPath != "" {
		return writeExport(app, run)
	}
	return nil
}

func writeExport(app *bootstrap.App, run domain.PipelineRun) error {
	data, err := app.Exporter.Export(run)
	if err != nil {
		return fmt.Errorf("export: %w", err)
	}
	if err := os.WriteFile(exportPath, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", exportPath, err)
	}
	return nil
}

