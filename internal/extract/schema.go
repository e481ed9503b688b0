package extract

import (
	"encoding/json"

	invjs "github.com/invopop/jsonschema"
	"github.com/rotisserie/eris"
	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/sells-group/newsfacts/internal/model"
	"github.com/sells-group/newsfacts/internal/taxonomy"
)

// SchemaName is the name given to the extraction schema in structured
// output requests.
const SchemaName = "news_extraction"

// ExtractionSchema reflects model.Extraction into a strict JSON schema. When
// tx is non-nil, topic and subtopic are constrained to its labels.
func ExtractionSchema(tx *taxonomy.Taxonomy) (json.RawMessage, error) {
	r := &invjs.Reflector{
		DoNotReference:            true,
		ExpandedStruct:            true,
		AllowAdditionalProperties: false,
	}
	s := r.Reflect(&model.Extraction{})
	s.Version = ""
	s.ID = ""

	if tx != nil {
		if topic, ok := s.Properties.Get("topic"); ok {
			topic.Enum = toAny(tx.TopicNames())
		}
		if sub, ok := s.Properties.Get("subtopic"); ok {
			sub.Enum = toAny(tx.SubtopicNames())
		}
	}

	raw, err := json.Marshal(s)
	if err != nil {
		return nil, eris.Wrap(err, "extract: marshal schema")
	}
	return raw, nil
}

// compileSchema compiles a reflected schema for response validation.
func compileSchema(raw json.RawMessage) (*jsonschema.Schema, error) {
	s, err := jsonschema.CompileString(SchemaName+".json", string(raw))
	if err != nil {
		return nil, eris.Wrap(err, "extract: compile schema")
	}
	return s, nil
}

func toAny(ss []string) []any {
	out := make([]any, len(ss))
	for i, s := range ss {
		out[i] = s
	}
	return out
}
