package extract

import (
	"encoding/json"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/sells-group/newsfacts/internal/model"
)

// ErrUnparseable is returned when model output is not a valid extraction.
var ErrUnparseable = eris.New("extract: unparseable model output")

// ErrTruncated is returned when the model stopped at the token limit.
var ErrTruncated = eris.New("extract: output truncated at max tokens")

// Parser decodes and validates model output.
type Parser struct {
	schema *jsonschema.Schema
}

// NewParser compiles the extraction schema without a taxonomy constraint.
// Labels outside the taxonomy are accepted here and simply fail to match
// at evaluation time.
func NewParser() (*Parser, error) {
	raw, err := ExtractionSchema(nil)
	if err != nil {
		return nil, err
	}
	s, err := compileSchema(raw)
	if err != nil {
		return nil, err
	}
	return &Parser{schema: s}, nil
}

// Parse extracts the JSON object from text, validates it and decodes it.
// Nil people and role lists are normalized to empty slices.
func (p *Parser) Parse(text string) (*model.Extraction, error) {
	cleaned := cleanJSON(text)
	if cleaned == "" {
		return nil, eris.Wrap(ErrUnparseable, "empty response")
	}

	var doc any
	if err := json.Unmarshal([]byte(cleaned), &doc); err != nil {
		return nil, eris.Wrap(ErrUnparseable, err.Error())
	}
	if p.schema != nil {
		if err := p.schema.Validate(doc); err != nil {
			return nil, eris.Wrap(ErrUnparseable, err.Error())
		}
	}

	var ext model.Extraction
	if err := json.Unmarshal([]byte(cleaned), &ext); err != nil {
		return nil, eris.Wrap(ErrUnparseable, err.Error())
	}
	if ext.People == nil {
		ext.People = []model.Person{}
	}
	for i := range ext.People {
		if ext.People[i].Roles == nil {
			ext.People[i].Roles = []string{}
		}
	}
	return &ext, nil
}

// cleanJSON strips markdown code fences and surrounding prose from model
// output, keeping the outermost JSON object.
func cleanJSON(text string) string {
	text = strings.TrimSpace(text)

	for _, fence := range []string{"```json", "```"} {
		if strings.HasPrefix(text, fence) {
			text = strings.TrimPrefix(text, fence)
			if idx := strings.LastIndex(text, "```"); idx >= 0 {
				text = text[:idx]
			}
			break
		}
	}

	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start >= 0 && end > start {
		text = text[start : end+1]
	}
	return strings.TrimSpace(text)
}
