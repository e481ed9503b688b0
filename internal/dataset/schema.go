package dataset

import "github.com/santhosh-tekuri/jsonschema/v5"

const personSchemaDef = `{
  "type": "object",
  "required": ["name", "roles"],
  "properties": {
    "name": {"type": "string"},
    "roles": {"type": "array", "items": {"type": "string"}}
  }
}`

const articleSchemaJSON = `{
  "type": "object",
  "required": ["id", "text"],
  "properties": {
    "id": {"type": "string", "minLength": 1},
    "text": {"type": "string"}
  }
}`

const groundTruthSchemaJSON = `{
  "type": "object",
  "required": ["uuid", "people", "topic", "subtopic"],
  "properties": {
    "uuid": {"type": "string", "minLength": 1},
    "people": {"type": "array", "items": ` + personSchemaDef + `},
    "topic": {"type": "string"},
    "subtopic": {"type": "string"}
  }
}`

const predictionSchemaJSON = `{
  "type": "object",
  "required": ["article_id", "success"],
  "properties": {
    "article_id": {"type": "string", "minLength": 1},
    "success": {"type": "boolean"},
    "extraction": {
      "oneOf": [
        {"type": "null"},
        {
          "type": "object",
          "required": ["people", "topic", "subtopic"],
          "properties": {
            "people": {"type": "array", "items": ` + personSchemaDef + `},
            "topic": {"type": "string"},
            "subtopic": {"type": "string"},
            "date": {"type": "string"}
          }
        }
      ]
    },
    "error": {"type": ["string", "null"]},
    "metadata": {"type": ["object", "null"]}
  },
  "if": {"properties": {"success": {"const": false}}},
  "then": {"properties": {"extraction": {"type": "null"}}}
}`

var (
	articleSchema     = jsonschema.MustCompileString("article.schema.json", articleSchemaJSON)
	groundTruthSchema = jsonschema.MustCompileString("ground_truth.schema.json", groundTruthSchemaJSON)
	predictionSchema  = jsonschema.MustCompileString("prediction.schema.json", predictionSchemaJSON)
)
