package main

import (
	"context"
	"fmt"
	"net/url"
	"path"
	"path/filepath"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/newsfacts/internal/dataset"
	"github.com/sells-group/newsfacts/internal/fetcher"
)

var fetchCmd = &cobra.Command{
	Use:   "fetch <url>",
	Short: "Download a remote dataset file",
	Long:  "Downloads an articles, ground truth or predictions file into the output directory so later runs can read it locally.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := cfg.Validate("fetch"); err != nil {
			return err
		}

		out, _ := cmd.Flags().GetString("output")
		dest, err := fetchDestination(args[0], out, cfg.Data.OutputDir)
		if err != nil {
			return err
		}

		n, err := runFetch(cmd.Context(), dataset.Remote, args[0], dest)
		if err != nil {
			return err
		}
		fmt.Printf("Downloaded %d bytes -> %s\n", n, dest)
		return nil
	},
}

func init() {
	fetchCmd.Flags().StringP("output", "o", "", "destination file (default: output dir + URL file name)")
	rootCmd.AddCommand(fetchCmd)
}

// fetchDestination picks where a download lands: out when set, otherwise the
// last URL path segment inside dir.
func fetchDestination(rawURL, out, dir string) (string, error) {
	if !fetcher.IsRemote(rawURL) {
		return "", eris.Errorf("fetch: %q is not an http(s) URL", rawURL)
	}
	if out != "" {
		return out, nil
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", eris.Wrapf(err, "fetch: parse %s", rawURL)
	}
	name := path.Base(u.Path)
	if name == "." || name == "/" {
		return "", eris.Errorf("fetch: cannot derive a file name from %s, pass --output", rawURL)
	}
	return filepath.Join(dir, name), nil
}

func runFetch(ctx context.Context, f fetcher.Fetcher, rawURL, dest string) (int64, error) {
	n, err := f.DownloadToFile(ctx, rawURL, dest)
	if err != nil {
		return 0, eris.Wrapf(err, "fetch: %s", rawURL)
	}
	zap.L().Info("fetch: done", zap.String("url", rawURL), zap.String("path", dest), zap.Int64("bytes", n))
	return n, nil
}
