package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/newsfacts/internal/dataset"
	"github.com/sells-group/newsfacts/internal/preprocess"
)

var preprocessCmd = &cobra.Command{
	Use:   "preprocess",
	Short: "Normalize article text",
	Long:  "Strips markdown emphasis from article text, normalizes it to NFC, then writes <name>_preprocessed.json to the output directory.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		if err := cfg.Validate("preprocess"); err != nil {
			return err
		}

		input, _ := cmd.Flags().GetString("input")
		if input == "" {
			input = cfg.Data.ArticlesPath
		}
		outDir, _ := cmd.Flags().GetString("output-dir")
		if outDir == "" {
			outDir = cfg.Data.OutputDir
		}

		path, n, err := runPreprocess(cmd, input, outDir)
		if err != nil {
			return err
		}
		fmt.Printf("Preprocessed %d articles -> %s\n", n, path)
		return nil
	},
}

func init() {
	preprocessCmd.Flags().String("input", "", "articles JSON file (default from config)")
	preprocessCmd.Flags().String("output-dir", "", "directory for the preprocessed file (default from config)")
	rootCmd.AddCommand(preprocessCmd)
}

func runPreprocess(cmd *cobra.Command, input, outDir string) (string, int, error) {
	arts, err := dataset.LoadArticles(cmd.Context(), input)
	if err != nil {
		return "", 0, err
	}
	cleaned := preprocess.Articles(arts)
	path := preprocess.OutputPath(input, outDir)
	if err := dataset.WriteJSON(path, cleaned); err != nil {
		return "", 0, err
	}
	zap.L().Info("preprocess: done", zap.Int("articles", len(cleaned)), zap.String("path", path))
	return path, len(cleaned), nil
}
