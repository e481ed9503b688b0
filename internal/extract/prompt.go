// Package extract turns news articles into structured predictions with an
// LLM provider.
package extract

import (
	"strings"

	"github.com/sells-group/newsfacts/internal/taxonomy"
)

const systemPrompt = `You are an expert at extracting structured information from news articles.
Extract the people mentioned together with their roles, classify the article into one topic and one subtopic, and find the article date.
Respond only with JSON, without any additional explanation.
If a piece of information is not present, use an empty list or an empty string.`

const outputFormat = `{
  "people": [
    {
      "name": "Full Name",
      "roles": ["Role1", "Role2"]
    }
  ],
  "topic": "TopicName",
  "subtopic": "SubtopicName",
  "date": "YYYY-MM-DD"
}`

// Prompt is the system and user text sent for one article.
type Prompt struct {
	System string
	User   string
}

// Prompter renders prompts for a fixed taxonomy. The system text is the
// same for every article.
type Prompter struct {
	system string
	block  string
}

// NewPrompter builds a Prompter. A nil taxonomy uses taxonomy.Default().
func NewPrompter(tx *taxonomy.Taxonomy) *Prompter {
	if tx == nil {
		tx = taxonomy.Default()
	}
	var sys strings.Builder
	sys.WriteString(systemPrompt)
	sys.WriteString("\n\nVALID TOPICS AND SUBTOPICS:\n")
	sys.WriteString(tx.PromptBlock())
	sys.WriteString("\nREQUIRED JSON FORMAT:\n")
	sys.WriteString(outputFormat)
	return &Prompter{system: sys.String(), block: tx.PromptBlock()}
}

// System returns the shared system prompt.
func (p *Prompter) System() string { return p.system }

// Build returns the prompt for one article text.
func (p *Prompter) Build(text string) Prompt {
	var u strings.Builder
	u.WriteString("Analyze the following news article and extract the required information.\n\n")
	u.WriteString("ARTICLE TEXT:\n")
	u.WriteString(text)
	u.WriteString("\n\nEXTRACT:\n")
	u.WriteString("1. People mentioned with their roles/professions\n")
	u.WriteString("2. Main topic category\n")
	u.WriteString("3. Specific subtopic\n")
	u.WriteString("4. Article date\n")
	return Prompt{System: p.system, User: u.String()}
}
