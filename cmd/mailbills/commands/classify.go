package commands

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/kirillkom/mailbills-assistant/internal/bootstrap"
	"github.com/kirillkom/mailbills-assistant/internal/config"
)

var classifyCmd = &cobra.Command{
	Use:   "classify FILE...",
	Short: "Show how each file would be handled",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runClassify,
}

func init() {
	rootCmd.AddCommand(classifyCmd)
}

func runClassify(cmd *cobra.Command, args []string) error {
	cfg := config.Load()
	if fileTypes != "" {
		cfg.FileTypesPath = fileTypes
	}
	classifier, err := bootstrap.NewClassifier(cfg)
	if err != nil {
		return err
	}
	files, err := readFiles(args)
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "FILE\tKIND\tMIME\tNORMALIZE")
	for _, file := range files {
		classified := classifier.Classify(file)
		fmt.Fprintf(w, "%s\t%s\t%s\t%t\n", file.Name, classified.Kind, file.NormalizedMIME(), classified.NeedsNormalization)
	}
	return w.Flush()
}
