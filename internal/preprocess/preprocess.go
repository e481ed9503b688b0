// Package preprocess applies the light text cleanup run on articles before
// extraction and computes simple corpus statistics.
package preprocess

import (
	"path/filepath"
	"regexp"
	"strings"

	"golang.org/x/text/unicode/norm"

	"github.com/sells-group/newsfacts/internal/model"
)

var (
	boldRe   = regexp.MustCompile(`\*\*(.*?)\*\*`)
	italicRe = regexp.MustCompile(`\*(.*?)\*`)
)

// CleanText removes markdown bold and italic markers, normalizes to NFC and
// trims surrounding whitespace. Bold is stripped before italic so that
// "**x**" never leaves stray asterisks.
func CleanText(s string) string {
	s = boldRe.ReplaceAllString(s, "$1")
	s = italicRe.ReplaceAllString(s, "$1")
	return strings.TrimSpace(norm.NFC.String(s))
}

// Articles returns cleaned copies of arts. The input slice is not modified.
func Articles(arts []model.Article) []model.Article {
	out := make([]model.Article, len(arts))
	for i, a := range arts {
		out[i] = model.Article{ID: a.ID, Text: CleanText(a.Text)}
	}
	return out
}

// OutputPath returns <dir>/<stem>_preprocessed.json for an input file.
func OutputPath(input, dir string) string {
	stem := strings.TrimSuffix(filepath.Base(input), filepath.Ext(input))
	return filepath.Join(dir, stem+"_preprocessed.json")
}
