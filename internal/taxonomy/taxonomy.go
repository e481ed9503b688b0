// Package taxonomy holds the closed set of topic and subtopic labels the
// extraction prompt offers the model.
package taxonomy

import (
	"os"
	"strings"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"
)

// Topic is a top-level label with its allowed subtopics.
type Topic struct {
	Name      string   `yaml:"name" json:"name"`
	Subtopics []string `yaml:"subtopics" json:"subtopics"`
}

// Taxonomy is an ordered list of topics.
type Taxonomy struct {
	Topics []Topic `yaml:"topics" json:"topics"`
}

// Default returns the built-in news taxonomy.
func Default() *Taxonomy {
	return &Taxonomy{Topics: []Topic{
		{Name: "Politics", Subtopics: []string{"Election", "Policy", "Corruption", "Diplomacy"}},
		{Name: "Sports", Subtopics: []string{"Football", "Olympics", "Doping", "Injury"}},
		{Name: "Crime", Subtopics: []string{"Robbery", "Murder", "Fraud", "Drug Trafficking"}},
		{Name: "Economy", Subtopics: []string{"Inflation", "Stock Market", "Unemployment", "GDP"}},
		{Name: "Environment", Subtopics: []string{"Climate Change", "Pollution", "Wildlife", "Natural Disaster"}},
		{Name: "Culture", Subtopics: []string{"Festival", "Cinema", "Literature", "Art Exhibition"}},
		{Name: "Science", Subtopics: []string{"Astronomy", "Physics", "Biology", "Research Discovery"}},
		{Name: "Technology", Subtopics: []string{"AI", "Cybersecurity", "Gadgets", "Software"}},
		{Name: "Health", Subtopics: []string{"Epidemic", "Vaccination", "Nutrition", "Mental Health"}},
	}}
}

// Load reads a taxonomy from a YAML file with a top-level "taxonomy" key.
// An empty path returns Default().
func Load(path string) (*Taxonomy, error) {
	if path == "" {
		return Default(), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "taxonomy: read %s", path)
	}

	var wrapper struct {
		Taxonomy Taxonomy `yaml:"taxonomy"`
	}
	if err := yaml.Unmarshal(data, &wrapper); err != nil {
		return nil, eris.Wrap(err, "taxonomy: parse")
	}

	t := &wrapper.Taxonomy
	if len(t.Topics) == 0 {
		return nil, eris.Errorf("taxonomy: %s defines no topics", path)
	}
	for _, topic := range t.Topics {
		if strings.TrimSpace(topic.Name) == "" {
			return nil, eris.Errorf("taxonomy: %s has a topic without a name", path)
		}
	}
	return t, nil
}

// Valid reports whether topic and subtopic form a known pair. Comparison is
// case-insensitive and ignores surrounding whitespace.
func (t *Taxonomy) Valid(topic, subtopic string) bool {
	for _, tp := range t.Topics {
		if !equalFold(tp.Name, topic) {
			continue
		}
		for _, s := range tp.Subtopics {
			if equalFold(s, subtopic) {
				return true
			}
		}
		return false
	}
	return false
}

// PromptBlock renders the taxonomy as a bullet list for the user prompt.
func (t *Taxonomy) PromptBlock() string {
	var b strings.Builder
	for _, tp := range t.Topics {
		b.WriteString("- ")
		b.WriteString(tp.Name)
		b.WriteString(": ")
		b.WriteString(strings.Join(tp.Subtopics, ", "))
		b.WriteString("\n")
	}
	return b.String()
}

// TopicNames returns topic names in declaration order.
func (t *Taxonomy) TopicNames() []string {
	names := make([]string, len(t.Topics))
	for i, tp := range t.Topics {
		names[i] = tp.Name
	}
	return names
}

// SubtopicNames returns every subtopic in declaration order.
func (t *Taxonomy) SubtopicNames() []string {
	var names []string
	for _, tp := range t.Topics {
		names = append(names, tp.Subtopics...)
	}
	return names
}

func equalFold(a, b string) bool {
	return strings.EqualFold(strings.TrimSpace(a), strings.TrimSpace(b))
}
