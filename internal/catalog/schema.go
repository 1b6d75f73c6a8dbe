package catalog

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v6"
)

const schemaURL = "schema://catalog.json"

// documentSchema checks the shape of an authored catalog document before it
// is decoded. Cross references are checked by Validate.
const documentSchema = `{
  "type": "object",
  "required": ["id", "tasks", "modules", "badges"],
  "properties": {
    "id": {"type": "string", "minLength": 1},
    "tasks": {
      "type": "array",
      "items": {
        "type": "object",
        "required": ["id", "moduleId", "type"],
        "properties": {
          "id": {"type": "string", "minLength": 1},
          "moduleId": {"type": "string", "minLength": 1},
          "type": {"enum": ["regular", "reading", "quiz", "application", "video", "referral"]},
          "reading": {
            "type": "object",
            "required": ["readingTime"],
            "properties": {"readingTime": {"type": "number", "exclusiveMinimum": 0}}
          },
          "quiz": {
            "type": "object",
            "required": ["questions"],
            "properties": {"questions": {"type": "array", "minItems": 1}}
          },
          "application": {"type": "object", "required": ["url"]},
          "video": {"type": "object", "required": ["url"]},
          "referral": {
            "type": "object",
            "required": ["fields"],
            "properties": {"fields": {"type": "array", "minItems": 1}}
          }
        }
      }
    },
    "modules": {
      "type": "array",
      "items": {
        "type": "object",
        "required": ["id", "badgeId", "taskIds"],
        "properties": {"taskIds": {"type": "array", "items": {"type": "string"}}}
      }
    },
    "badges": {
      "type": "array",
      "items": {
        "type": "object",
        "required": ["id", "points"],
        "properties": {"points": {"type": "integer", "minimum": 0}}
      }
    },
    "certificates": {
      "type": "array",
      "items": {"type": "object", "required": ["id", "requiredBadgeIds"]}
    },
    "rewards": {
      "type": "array",
      "items": {
        "type": "object",
        "required": ["id", "kind"],
        "properties": {
          "kind": {"enum": ["badge", "point"]},
          "pointCost": {"type": "integer"}
        }
      }
    }
  }
}`

var (
	compileOnce sync.Once
	compiled    *jsonschema.Schema
	compileErr  error
)

func documentValidator() (*jsonschema.Schema, error) {
	compileOnce.Do(func() {
		var def any
		if err := json.Unmarshal([]byte(documentSchema), &def); err != nil {
			compileErr = fmt.Errorf("parse catalog schema: %w", err)
			return
		}
		c := jsonschema.NewCompiler()
		if err := c.AddResource(schemaURL, def); err != nil {
			compileErr = fmt.Errorf("add resource: %w", err)
			return
		}
		compiled, compileErr = c.Compile(schemaURL)
	})
	return compiled, compileErr
}

// checkDocument validates a JSON catalog document against the schema.
func checkDocument(raw []byte) error {
	schema, err := documentValidator()
	if err != nil {
		return err
	}
	parsed, err := jsonschema.UnmarshalJSON(bytes.NewReader(raw))
	if err != nil {
		return fmt.Errorf("invalid JSON: %w", err)
	}
	if err := schema.Validate(parsed); err != nil {
		return fmt.Errorf("schema validation failed: %w", err)
	}
	return nil
}
