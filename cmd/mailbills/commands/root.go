package commands

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/gabriel-vasile/mimetype"
	"github.com/spf13/cobra"

	"github.com/kirillkom/mailbills-assistant/internal/core/domain"
)

var (
	logLevel  string
	fileTypes string
)

var rootCmd = &cobra.Command{
	Use:           "mailbills",
	Short:         "Read letters and bills and explain them",
	Long:          "mailbills classifies scanned letters, bills and PDFs, extracts their text and explains them in plain language.",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "warn", "log level written to stderr")
	rootCmd.PersistentFlags().StringVar(&fileTypes, "file-types", "", "YAML file overriding accepted file types")
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

// readFiles loads paths from disk. The declared MIME is sniffed the way a
// browser would label an upload.
func readFiles(paths []string) ([]domain.SubmittedFile, error) {
	out := make([]domain.SubmittedFile, 0, len(paths))
	for _, path := range paths {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", path, err)
		}
		out = append(out, domain.SubmittedFile{
			Name:         filepath.Base(path),
			DeclaredMIME: mimetype.Detect(data).String(),
			Data:         data,
		})
	}
	return out, nil
}
