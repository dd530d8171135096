package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

type unmarshalFunc func([]byte, interface{}) error

// LoadFile decodes path into target. Files ending in .json are JSON with
// durations in nanoseconds; everything else is YAML, where durations may
// be written as "250us".
func LoadFile(path string, target interface{}) error {
	if strings.EqualFold(filepath.Ext(path), ".json") {
		return LoadJSON(path, target)
	}
	return LoadYAML(path, target)
}

func LoadYAML(path string, target interface{}) error {
	return decodeFile(path, "YAML", yaml.Unmarshal, target)
}

func LoadJSON(path string, target interface{}) error {
	return decodeFile(path, "JSON", json.Unmarshal, target)
}

func decodeFile(path, format string, unmarshal unmarshalFunc, target interface{}) error {
	// #nosec G304 -- the path comes from the operator.
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read %s file %s: %w", format, path, err)
	}
	if err := unmarshal(data, target); err != nil {
		return fmt.Errorf("failed to unmarshal %s %s: %w", format, path, err)
	}
	return nil
}

// SaveYAML writes config to path, readable by the owner only.
func SaveYAML(path string, config interface{}) error {
	data, err := yaml.Marshal(config)
	if err != nil {
		return fmt.Errorf("failed to marshal YAML: %w", err)
	}
	return os.WriteFile(path, data, 0o600)
}
