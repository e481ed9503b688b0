package preprocess

import (
	"strings"
	"unicode/utf8"

	"github.com/sells-group/newsfacts/internal/model"
)

// TextStats summarizes article lengths across a corpus.
type TextStats struct {
	Documents   int `json:"num_documents"`
	AvgChars    int `json:"avg_length_chars"`
	MinChars    int `json:"min_length_chars"`
	MaxChars    int `json:"max_length_chars"`
	AvgWords    int `json:"avg_words"`
	MinWords    int `json:"min_words"`
	MaxWords    int `json:"max_words"`
	AvgTokens   int `json:"avg_tokens"`
	MinTokens   int `json:"min_tokens"`
	MaxTokens   int `json:"max_tokens"`
	TotalTokens int `json:"total_tokens"`
}

// ApproxTokens estimates the token count of s at four characters per token.
func ApproxTokens(s string) int {
	n := utf8.RuneCountInString(s)
	return (n + 3) / 4
}

// Stats computes TextStats over arts. An empty corpus yields the zero value.
func Stats(arts []model.Article) TextStats {
	if len(arts) == 0 {
		return TextStats{}
	}

	st := TextStats{Documents: len(arts)}
	var chars, words int
	for i, a := range arts {
		c := utf8.RuneCountInString(a.Text)
		w := len(strings.Fields(a.Text))
		tok := ApproxTokens(a.Text)

		chars += c
		words += w
		st.TotalTokens += tok

		if i == 0 {
			st.MinChars, st.MaxChars = c, c
			st.MinWords, st.MaxWords = w, w
			st.MinTokens, st.MaxTokens = tok, tok
			continue
		}
		st.MinChars = min(st.MinChars, c)
		st.MaxChars = max(st.MaxChars, c)
		st.MinWords = min(st.MinWords, w)
		st.MaxWords = max(st.MaxWords, w)
		st.MinTokens = min(st.MinTokens, tok)
		st.MaxTokens = max(st.MaxTokens, tok)
	}

	st.AvgChars = chars / len(arts)
	st.AvgWords = words / len(arts)
	st.AvgTokens = st.TotalTokens / len(arts)
	return st
}
