package extract

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/newsfacts/internal/taxonomy"
)

const validOutput = `{"people":[{"name":"Jane Doe","roles":["CEO"]}],"topic":"Business","subtopic":"Companies","date":"2024-03-01"}`

func newTestParser(t *testing.T) *Parser {
	t.Helper()
	p, err := NewParser()
	require.NoError(t, err)
	return p
}

func TestCleanJSON(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"plain", `{"a":1}`, `{"a":1}`},
		{"json fence", "```json\n{\"a\":1}\n```", `{"a":1}`},
		{"bare fence", "```\n{\"a\":1}\n```", `{"a":1}`},
		{"surrounding prose", "Here you go:\n{\"a\":1}\nThanks!", `{"a":1}`},
		{"whitespace", "  \n{\"a\":1}  \n", `{"a":1}`},
		{"no object", "no json here", "no json here"},
		{"empty", "   ", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, cleanJSON(tt.in))
		})
	}
}

func TestParse_Valid(t *testing.T) {
	p := newTestParser(t)

	ext, err := p.Parse("```json\n" + validOutput + "\n```")
	require.NoError(t, err)
	require.Len(t, ext.People, 1)
	assert.Equal(t, "Jane Doe", ext.People[0].Name)
	assert.Equal(t, []string{"CEO"}, ext.People[0].Roles)
	assert.Equal(t, "Business", ext.Topic)
	assert.Equal(t, "Companies", ext.Subtopic)
	assert.Equal(t, "2024-03-01", ext.Date)
}

func TestParse_EmptyRolesAndPeople(t *testing.T) {
	p := newTestParser(t)

	ext, err := p.Parse(`{"people":[],"topic":"","subtopic":"","date":""}`)
	require.NoError(t, err)
	assert.NotNil(t, ext.People)
	assert.Empty(t, ext.People)

	ext, err = p.Parse(`{"people":[{"name":"A","roles":[]}],"topic":"x","subtopic":"y","date":""}`)
	require.NoError(t, err)
	assert.NotNil(t, ext.People[0].Roles)
}

func TestParse_UnknownLabelsAccepted(t *testing.T) {
	p := newTestParser(t)

	ext, err := p.Parse(`{"people":[],"topic":"Astrology","subtopic":"Horoscopes","date":""}`)
	require.NoError(t, err)
	assert.Equal(t, "Astrology", ext.Topic)
}

func TestParse_Errors(t *testing.T) {
	p := newTestParser(t)

	tests := []struct {
		name string
		in   string
	}{
		{"empty", ""},
		{"prose", "I cannot help with that."},
		{"broken json", `{"people": [`},
		{"missing topic", `{"people":[],"subtopic":"","date":""}`},
		{"people not array", `{"people":"Jane","topic":"","subtopic":"","date":""}`},
		{"person without name", `{"people":[{"roles":[]}],"topic":"","subtopic":"","date":""}`},
		{"extra field", `{"people":[],"topic":"","subtopic":"","date":"","mood":"happy"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ext, err := p.Parse(tt.in)
			require.Error(t, err)
			assert.Nil(t, ext)
			assert.True(t, errors.Is(err, ErrUnparseable))
		})
	}
}

func TestExtractionSchema_Enums(t *testing.T) {
	tx := taxonomy.Default()
	raw, err := ExtractionSchema(tx)
	require.NoError(t, err)

	type property struct {
		Type string   `json:"type"`
		Enum []string `json:"enum"`
	}
	var doc struct {
		Type                 string              `json:"type"`
		AdditionalProperties *bool               `json:"additionalProperties"`
		Required             []string            `json:"required"`
		Properties           map[string]property `json:"properties"`
	}
	require.NoError(t, json.Unmarshal(raw, &doc))

	assert.Equal(t, "object", doc.Type)
	require.NotNil(t, doc.AdditionalProperties)
	assert.False(t, *doc.AdditionalProperties)
	assert.ElementsMatch(t, []string{"people", "topic", "subtopic", "date"}, doc.Required)
	assert.Equal(t, tx.TopicNames(), doc.Properties["topic"].Enum)
	assert.Equal(t, tx.SubtopicNames(), doc.Properties["subtopic"].Enum)
	assert.Equal(t, "array", doc.Properties["people"].Type)
	assert.NotContains(t, string(raw), "$schema")
}

func TestExtractionSchema_NoTaxonomy(t *testing.T) {
	raw, err := ExtractionSchema(nil)
	require.NoError(t, err)
	assert.False(t, strings.Contains(string(raw), `"enum"`))
}

func TestStrictSchemaRejectsUnknownTopic(t *testing.T) {
	raw, err := ExtractionSchema(taxonomy.Default())
	require.NoError(t, err)
	s, err := compileSchema(raw)
	require.NoError(t, err)

	var doc any
	require.NoError(t, json.Unmarshal([]byte(`{"people":[],"topic":"Astrology","subtopic":"","date":""}`), &doc))
	assert.Error(t, s.Validate(doc))
}
