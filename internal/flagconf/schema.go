package flagconf

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v6"
	"gopkg.in/yaml.v3"
)

// Schema is the JSON Schema (Draft 2020-12) for a flag configuration
// file: a mapping of flag key to flag definition. `flaglens lint`
// validates JSON flag files against it in addition to the semantic
// checks in Validate.
const Schema = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "$id": "https://github.com/unbound-force/flaglens/flag-config.schema.json",
  "title": "Flaglens Flag Configuration",
  "description": "A mapping of flag key to feature flag definition",
  "type": "object",
  "propertyNames": {
    "pattern": "^[a-zA-Z0-9][a-zA-Z0-9._-]{0,127}$"
  },
  "additionalProperties": { "$ref": "#/$defs/Flag" },
  "$defs": {
    "Flag": {
      "type": "object",
      "required": ["variations"],
      "properties": {
        "variations": {
          "type": "object",
          "minProperties": 1,
          "description": "Named variation values"
        },
        "targeting": {
          "type": "array",
          "items": { "$ref": "#/$defs/TargetingRule" }
        },
        "defaultRule": { "$ref": "#/$defs/DefaultRule" },
        "scheduledRollout": {
          "type": "array",
          "items": { "$ref": "#/$defs/ScheduledStep" }
        },
        "experimentation": { "$ref": "#/$defs/Experimentation" },
        "trackEvents": { "type": "boolean" },
        "disable": { "type": "boolean" },
        "version": { "type": "string" },
        "metadata": { "type": "object" }
      },
      "additionalProperties": false
    },
    "TargetingRule": {
      "type": "object",
      "required": ["query"],
      "properties": {
        "name": { "type": "string" },
        "query": {
          "type": "string",
          "description": "Rule expression over evaluation context attributes"
        },
        "variation": { "type": "string" },
        "percentage": { "$ref": "#/$defs/Percentage" },
        "disable": { "type": "boolean" }
      },
      "additionalProperties": false
    },
    "DefaultRule": {
      "type": "object",
      "properties": {
        "variation": { "type": "string" },
        "percentage": { "$ref": "#/$defs/Percentage" },
        "progressiveRollout": { "$ref": "#/$defs/ProgressiveRollout" }
      },
      "additionalProperties": false
    },
    "Percentage": {
      "type": "object",
      "additionalProperties": { "type": "number", "minimum": 0 },
      "description": "Variation name to percentage of traffic; must sum to 100"
    },
    "ProgressiveRollout": {
      "type": "object",
      "required": ["initial", "end"],
      "properties": {
        "initial": { "$ref": "#/$defs/ProgressiveStep" },
        "end": { "$ref": "#/$defs/ProgressiveStep" }
      },
      "additionalProperties": false
    },
    "ProgressiveStep": {
      "type": "object",
      "properties": {
        "variation": { "type": "string" },
        "percentage": { "type": "number", "minimum": 0, "maximum": 100 },
        "date": { "type": "string", "format": "date-time" }
      },
      "additionalProperties": false
    },
    "ScheduledStep": {
      "type": "object",
      "required": ["date"],
      "properties": {
        "date": { "type": "string", "format": "date-time" },
        "variations": { "type": "object" },
        "targeting": {
          "type": "array",
          "items": { "$ref": "#/$defs/TargetingRule" }
        },
        "defaultRule": { "$ref": "#/$defs/DefaultRule" },
        "disable": { "type": "boolean" }
      },
      "additionalProperties": false
    },
    "Experimentation": {
      "type": "object",
      "properties": {
        "start": { "type": "string", "format": "date-time" },
        "end": { "type": "string", "format": "date-time" }
      },
      "additionalProperties": false
    }
  }
}`

// ValidateSchema checks a raw flag document against Schema. Unlike
// Validate, which works on the decoded model, this catches unknown
// fields and structural mistakes that decoding silently drops. YAML
// input is converted to a JSON document first.
func ValidateSchema(data []byte, format Format) error {
	var doc any
	switch format {
	case FormatJSON:
		var err error
		doc, err = jsonschema.UnmarshalJSON(bytes.NewReader(data))
		if err != nil {
			return fmt.Errorf("parsing JSON flag file: %w", err)
		}
	case FormatYAML:
		var raw any
		if err := yaml.Unmarshal(data, &raw); err != nil {
			return fmt.Errorf("parsing YAML flag file: %w", err)
		}
		buf, err := json.Marshal(raw)
		if err != nil {
			return fmt.Errorf("converting flag file to JSON: %w", err)
		}
		doc, err = jsonschema.UnmarshalJSON(bytes.NewReader(buf))
		if err != nil {
			return err
		}
	default:
		return fmt.Errorf("unsupported flag file format %q", format)
	}

	sch, err := jsonschema.UnmarshalJSON(strings.NewReader(Schema))
	if err != nil {
		return fmt.Errorf("unmarshaling flag config schema: %w", err)
	}
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("flag-config.schema.json", sch); err != nil {
		return fmt.Errorf("adding flag config schema: %w", err)
	}
	compiled, err := compiler.Compile("flag-config.schema.json")
	if err != nil {
		return fmt.Errorf("compiling flag config schema: %w", err)
	}
	return compiled.Validate(doc)
}
