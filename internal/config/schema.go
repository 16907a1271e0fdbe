package config

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// configSchema constrains the shape and ranges of the configuration; the
// remaining cross-field rules live in Validate.
const configSchema = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "type": "object",
  "properties": {
    "version": {"type": "integer", "minimum": 1},
    "daemon": {
      "type": "object",
      "properties": {
        "socket": {"type": "string"},
        "host": {"type": "string"},
        "port": {"type": "integer", "minimum": 0, "maximum": 65535}
      }
    },
    "predict": {
      "type": "object",
      "properties": {
        "enabled": {"type": "boolean"}
      }
    },
    "lexicon": {
      "type": "object",
      "properties": {
        "dict_path": {"type": "string"},
        "model_path": {"type": "string"},
        "watch": {"type": "boolean"}
      }
    },
    "logging": {
      "type": "object",
      "properties": {
        "level": {"enum": ["", "debug", "info", "warn", "warning", "error"]},
        "format": {"enum": ["", "text", "json"]},
        "output": {"enum": ["", "stderr", "file", "both", "discard"]},
        "file_path": {"type": "string"}
      }
    }
  }
}`

var (
	schemaOnce     sync.Once
	compiledSchema *jsonschema.Schema
	schemaErr      error
)

func schema() (*jsonschema.Schema, error) {
	schemaOnce.Do(func() {
		compiler := jsonschema.NewCompiler()
		if err := compiler.AddResource("config.schema.json", bytes.NewReader([]byte(configSchema))); err != nil {
			schemaErr = err
			return
		}
		compiledSchema, schemaErr = compiler.Compile("config.schema.json")
	})
	return compiledSchema, schemaErr
}

// validateSchema checks the config against the embedded JSON Schema.
func (c *Config) validateSchema() error {
	s, err := schema()
	if err != nil {
		return fmt.Errorf("config: schema: %w", err)
	}

	data, err := json.Marshal(c)
	if err != nil {
		return fmt.Errorf("config: marshal: %w", err)
	}
	var instance any
	if err := json.Unmarshal(data, &instance); err != nil {
		return fmt.Errorf("config: unmarshal: %w", err)
	}

	if err := s.Validate(instance); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	return nil
}
