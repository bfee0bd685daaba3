package config

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"

	yaml "go.yaml.in/yaml/v3"
)

// The config file may be written in YAML (the deploy default) or JSON. Both
// run through one strict JSON decode so a typoed key like "jobs.snapshoot" is
// rejected identically in either format: YAML input is first parsed into
// plain values and re-marshaled as JSON.
func decodeBytes(path string, raw []byte) ([]byte, error) {
	if !yamlPath(path) {
		return raw, nil
	}
	var doc any
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("config %s: %w", filepath.Base(path), err)
	}
	jb, err := json.Marshal(stringKeyed(doc))
	if err != nil {
		return nil, fmt.Errorf("config %s: %w", filepath.Base(path), err)
	}
	return jb, nil
}

func yamlPath(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return true
	}
	return false
}

// stringKeyed rewrites YAML maps so every key is a string. YAML permits
// non-string keys ("8980: x" parses the key as an int) which json.Marshal
// refuses; stringifying them keeps the error at the strict decode, where it
// names the offending field.
func stringKeyed(v any) any {
	switch node := v.(type) {
	case map[string]any:
		for k, child := range node {
			node[k] = stringKeyed(child)
		}
		return node
	case map[any]any:
		out := make(map[string]any, len(node))
		for k, child := range node {
			out[fmt.Sprint(k)] = stringKeyed(child)
		}
		return out
	case []any:
		for i, child := range node {
			node[i] = stringKeyed(child)
		}
		return node
	}
	return v
}
