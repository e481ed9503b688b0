package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/sells-group/newsfacts/internal/dataset"
	"github.com/sells-group/newsfacts/internal/preprocess"
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show length and token statistics for an articles file",
	RunE: func(cmd *cobra.Command, _ []string) error {
		if err := cfg.Validate("stats"); err != nil {
			return err
		}

		input, _ := cmd.Flags().GetString("input")
		if input == "" {
			input = cfg.Data.ArticlesPath
		}
		asJSON, _ := cmd.Flags().GetBool("json")

		arts, err := dataset.LoadArticles(cmd.Context(), input)
		if err != nil {
			return err
		}
		return writeStats(os.Stdout, preprocess.Stats(arts), asJSON)
	},
}

func init() {
	statsCmd.Flags().String("input", "", "articles JSON file (default from config)")
	statsCmd.Flags().Bool("json", false, "print statistics as JSON")
	rootCmd.AddCommand(statsCmd)
}

func writeStats(w io.Writer, st preprocess.TextStats, asJSON bool) error {
	if asJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(st)
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(tw, "\tAVG\tMIN\tMAX")
	_, _ = fmt.Fprintf(tw, "chars\t%d\t%d\t%d\n", st.AvgChars, st.MinChars, st.MaxChars)
	_, _ = fmt.Fprintf(tw, "words\t%d\t%d\t%d\n", st.AvgWords, st.MinWords, st.MaxWords)
	_, _ = fmt.Fprintf(tw, "tokens\t%d\t%d\t%d\n", st.AvgTokens, st.MinTokens, st.MaxTokens)
	_ = tw.Flush()
	_, err := fmt.Fprintf(w, "\n%d documents, ~%d tokens total\n", st.Documents, st.TotalTokens)
	return err
}
