package config

import (
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

// Schema is the JSON schema of the config file
const Schema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "properties": {
    "default_profile": {"type": "string"},
    "profiles": {
      "type": "array",
      "items": {
        "type": "object",
        "required": ["name", "transport"],
        "properties": {
          "name": {"type": "string", "minLength": 1},
          "transport": {"type": "string", "minLength": 1},
          "dsn": {"type": "string"},
          "workspace": {"type": "string"},
          "user_id": {"type": "string"},
          "read_only": {"type": "boolean"},
          "attributes": {
            "type": "object",
            "additionalProperties": {"type": "string"}
          }
        },
        "additionalProperties": false
      }
    },
    "shell": {
      "type": "object",
      "properties": {
        "auto_save": {"type": "boolean"},
        "prefix_completion": {"type": "boolean"},
        "aliases": {
          "type": "object",
          "additionalProperties": {"type": "string"}
        },
        "prompt": {"type": "string"},
        "history": {"type": "boolean"},
        "history_size": {"type": "integer", "minimum": 0},
        "hooks": {
          "type": "object",
          "properties": {
            "enabled": {"type": "boolean"},
            "entries": {
              "type": "array",
              "items": {
                "type": "object",
                "properties": {
                  "id": {"type": "string"},
                  "event": {"type": "string"},
                  "command": {"type": "string"},
                  "script": {"type": "string"},
                  "timeout": {"type": ["string", "integer"]},
                  "enabled": {"type": "boolean"}
                }
              }
            }
          }
        }
      }
    },
    "logging": {
      "type": "object",
      "properties": {
        "level": {"type": "string"},
        "file": {"type": "string"},
        "console": {"type": "boolean"},
        "max_size": {"type": "integer", "minimum": 0},
        "max_age": {"type": "integer", "minimum": 0},
        "compress": {"type": "boolean"},
        "redaction": {"type": "boolean"}
      }
    },
    "tracing": {
      "type": "object",
      "properties": {
        "enabled": {"type": "boolean"},
        "service_name": {"type": "string"}
      }
    },
    "data_dir": {"type": "string"},
    "audit_log": {"type": "string"},
    "metrics_addr": {"type": "string"}
  }
}`

var schemaLoader = gojsonschema.NewStringLoader(Schema)

// ValidateSchema validates raw config JSON against Schema
func ValidateSchema(data []byte) error {
	result, err := gojsonschema.Validate(schemaLoader, gojsonschema.NewBytesLoader(data))
	if err != nil {
		return fmt.Errorf("schema validation error: %w", err)
	}

	if !result.Valid() {
		msgs := make([]string, 0, len(result.Errors()))
		for _, e := range result.Errors() {
			msgs = append(msgs, e.String())
		}
		return fmt.Errorf("schema validation errors: %s", strings.Join(msgs, "; "))
	}

	return nil
}
