package config

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// SavePreset selects a built-in theme in the config file and clears any
// theme file path.
func SavePreset(configPath, preset string) error {
	return SaveValues(configPath, map[string]string{
		"theme.preset": preset,
		"theme.path":   "",
	})
}

// SaveValues sets dotted keys ("theme.preset") to scalar values in the
// config file. An empty value removes the key. Comments and formatting in
// other sections are preserved by editing the yaml.Node tree.
func SaveValues(configPath string, values map[string]string) error {
	data, err := os.ReadFile(configPath)
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("reading config: %w", err)
	}

	var doc yaml.Node
	if len(data) > 0 {
		if err := yaml.Unmarshal(data, &doc); err != nil {
			return fmt.Errorf("parsing config: %w", err)
		}
	}
	if doc.Kind == 0 {
		doc = yaml.Node{
			Kind:    yaml.DocumentNode,
			Content: []*yaml.Node{{Kind: yaml.MappingNode}},
		}
	}
	if doc.Kind != yaml.DocumentNode || len(doc.Content) == 0 || doc.Content[0].Kind != yaml.MappingNode {
		return fmt.Errorf("parsing config: top level is not a mapping")
	}
	root := doc.Content[0]

	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, key := range keys {
		if err := setPath(root, strings.Split(key, "."), values[key]); err != nil {
			return fmt.Errorf("setting %s: %w", key, err)
		}
	}

	var buf bytes.Buffer
	encoder := yaml.NewEncoder(&buf)
	encoder.SetIndent(2)
	if err := encoder.Encode(&doc); err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	_ = encoder.Close()

	return writeAtomic(configPath, buf.Bytes())
}

// setPath walks (creating as needed) the mappings for path and sets the
// final key. An empty value deletes it.
func setPath(m *yaml.Node, path []string, value string) error {
	key := path[0]
	idx := -1
	for i := 0; i < len(m.Content)-1; i += 2 {
		if m.Content[i].Value == key {
			idx = i
			break
		}
	}

	if len(path) == 1 {
		switch {
		case value == "" && idx >= 0:
			m.Content = append(m.Content[:idx], m.Content[idx+2:]...)
		case value == "":
		case idx >= 0:
			v := m.Content[idx+1]
			*v = yaml.Node{Kind: yaml.ScalarNode, Value: value, LineComment: v.LineComment}
		default:
			m.Content = append(m.Content,
				&yaml.Node{Kind: yaml.ScalarNode, Value: key},
				&yaml.Node{Kind: yaml.ScalarNode, Value: value},
			)
		}
		return nil
	}

	if idx < 0 {
		if value == "" {
			return nil
		}
		child := &yaml.Node{Kind: yaml.MappingNode}
		m.Content = append(m.Content, &yaml.Node{Kind: yaml.ScalarNode, Value: key}, child)
		return setPath(child, path[1:], value)
	}
	child := m.Content[idx+1]
	if child.Kind != yaml.MappingNode {
		if value == "" {
			return nil
		}
		if child.Kind == yaml.ScalarNode && child.Value != "" {
			return fmt.Errorf("%s is not a mapping", key)
		}
		*child = yaml.Node{Kind: yaml.MappingNode}
	}
	return setPath(child, path[1:], value)
}

// writeAtomic writes to a temp file in the same directory, then renames.
func writeAtomic(configPath string, data []byte) error {
	dir := filepath.Dir(configPath)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	temp, err := os.CreateTemp(dir, ".lumen.yaml.tmp.*")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	tempPath := temp.Name()

	if _, err := temp.Write(data); err != nil {
		_ = temp.Close()
		_ = os.Remove(tempPath)
		return fmt.Errorf("writing temp file: %w", err)
	}
	if err := temp.Close(); err != nil {
		_ = os.Remove(tempPath)
		return fmt.Errorf("closing temp file: %w", err)
	}

	if err := os.Rename(tempPath, configPath); err != nil {
		_ = os.Remove(tempPath)
		return fmt.Errorf("renaming temp file: %w", err)
	}
	return nil
}
