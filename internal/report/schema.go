package report

// Schema is the JSON Schema (Draft 2020-12) for the audit JSON
// output. It documents the structure returned by WriteJSON.
const Schema = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "$id": "https://github.com/unbound-force/flaglens/audit-report.schema.json",
  "title": "Flaglens Audit Report",
  "description": "Output schema for flaglens audit --format=json",
  "type": "object",
  "required": ["version", "findings", "summary"],
  "properties": {
    "version": {
      "type": "string",
      "description": "Schema version (semver)"
    },
    "findings": {
      "type": "array",
      "items": { "$ref": "#/$defs/Finding" }
    },
    "summary": { "$ref": "#/$defs/Summary" }
  },
  "$defs": {
    "Finding": {
      "type": "object",
      "required": ["kind", "key"],
      "properties": {
        "kind": {
          "type": "string",
          "enum": ["missing", "unused", "type-mismatch"],
          "description": "Discrepancy classification"
        },
        "key": {
          "type": "string",
          "description": "Flag key"
        },
        "codeType": {
          "type": "string",
          "enum": ["boolean", "string", "number", "object", "unknown"],
          "description": "Type the code-side accessor expects"
        },
        "configType": {
          "type": "string",
          "enum": ["boolean", "string", "number", "object", "unknown"],
          "description": "Type of the configured variations"
        },
        "references": {
          "type": "array",
          "items": { "$ref": "#/$defs/Reference" }
        }
      }
    },
    "Reference": {
      "type": "object",
      "required": ["file", "line"],
      "properties": {
        "file": {
          "type": "string",
          "description": "Path relative to the scan root"
        },
        "line": {
          "type": "integer",
          "minimum": 1
        }
      }
    },
    "Summary": {
      "type": "object",
      "required": ["flagsInCode", "flagsInConfig", "missing", "unused", "mismatched"],
      "properties": {
        "flagsInCode": { "type": "integer", "minimum": 0 },
        "flagsInConfig": { "type": "integer", "minimum": 0 },
        "missing": { "type": "integer", "minimum": 0 },
        "unused": { "type": "integer", "minimum": 0 },
        "mismatched": { "type": "integer", "minimum": 0 }
      }
    }
  }
}`
