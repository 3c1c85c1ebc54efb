package config

import (
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/rileyhilliard/doorctl/internal/door"
	"gopkg.in/yaml.v3"
)

// SavePairing writes the credentials of a completed pairing into the
// bluetooth section of a door. It preserves the existing YAML structure
// and comments.
func SavePairing(configPath, doorName string, p door.Pairing) error {
	return updateDoor(configPath, doorName, "bluetooth", func(section *yaml.Node) {
		setScalar(section, "auth_id", strconv.FormatUint(uint64(p.AuthID), 10), "!!int")
		setScalar(section, "shared_key", hex.EncodeToString(p.SharedKey), "!!str")
		if p.AppID != 0 {
			setScalar(section, "app_id", strconv.FormatUint(uint64(p.AppID), 10), "!!int")
		}
		if p.Name != "" {
			setScalar(section, "name", p.Name, "!!str")
		}
	})
}

// SaveGeneratedKey stores a generated key pair in the ssh section of a door,
// replacing any key_file.
func SaveGeneratedKey(configPath, doorName string, k GeneratedKey) error {
	return updateDoor(configPath, doorName, "ssh", func(section *yaml.Node) {
		removeKey(section, "key_file")
		key := ensureMapping(section, "key")
		key.Content = nil
		setScalar(key, "type", k.Type, "!!str")
		setScalar(key, "private", k.Private, "!!str")
		setScalar(key, "public", k.Public, "!!str")
		setScalar(key, "encrypted", strconv.FormatBool(k.Encrypted), "!!bool")
	})
}

// EncodeKey converts raw key material into its config form.
func EncodeKey(typ string, private, public []byte, encrypted bool) GeneratedKey {
	return GeneratedKey{
		Type:      typ,
		Private:   base64.StdEncoding.EncodeToString(private),
		Public:    base64.StdEncoding.EncodeToString(public),
		Encrypted: encrypted,
	}
}

// updateDoor navigates to doors.<doorName>.<section> and applies edit.
func updateDoor(configPath, doorName, section string, edit func(*yaml.Node)) error {
	data, err := os.ReadFile(configPath)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	var root yaml.Node
	if err := yaml.Unmarshal(data, &root); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}

	if root.Kind != yaml.DocumentNode || len(root.Content) == 0 {
		return fmt.Errorf("invalid YAML document structure")
	}

	docNode := root.Content[0]
	if docNode.Kind != yaml.MappingNode {
		return fmt.Errorf("expected mapping at document root")
	}

	doorsNode := findMapValue(docNode, "doors")
	if doorsNode == nil {
		return fmt.Errorf("'doors' key not found in config")
	}

	doorNode := findMapValue(doorsNode, doorName)
	if doorNode == nil || doorNode.Kind != yaml.MappingNode {
		return fmt.Errorf("door '%s' not found in config", doorName)
	}

	sectionNode := findMapValue(doorNode, section)
	if sectionNode == nil || sectionNode.Kind != yaml.MappingNode {
		return fmt.Errorf("door '%s' has no '%s' section", doorName, section)
	}

	edit(sectionNode)

	var buf strings.Builder
	encoder := yaml.NewEncoder(&buf)
	encoder.SetIndent(2)
	if err := encoder.Encode(&root); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	if err := encoder.Close(); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}

	if err := writePrivate(configPath, []byte(buf.String())); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// writePrivate replaces path with data, leaving it readable by the owner
// only. Credentials live in this file, so an existing wider mode is not kept.
func writePrivate(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	if err := tmp.Chmod(0600); err != nil {
		tmp.Close()
		return err
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}

// findMapValue finds a value in a mapping node by key name. Keys match
// case-insensitively because viper lowercases them when loading.
func findMapValue(node *yaml.Node, key string) *yaml.Node {
	if node.Kind != yaml.MappingNode {
		return nil
	}

	for i := 0; i < len(node.Content)-1; i += 2 {
		keyNode := node.Content[i]
		valueNode := node.Content[i+1]

		if keyNode.Kind == yaml.ScalarNode && strings.EqualFold(keyNode.Value, key) {
			return valueNode
		}
	}

	return nil
}

// setScalar sets key to a scalar value, adding the key when missing.
func setScalar(node *yaml.Node, key, value, tag string) {
	if v := findMapValue(node, key); v != nil {
		v.Kind = yaml.ScalarNode
		v.Tag = tag
		v.Value = value
		v.Content = nil
		v.Style = 0
		return
	}
	node.Content = append(node.Content,
		&yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: key},
		&yaml.Node{Kind: yaml.ScalarNode, Tag: tag, Value: value},
	)
}

// ensureMapping returns the mapping under key, creating it when missing.
func ensureMapping(node *yaml.Node, key string) *yaml.Node {
	if v := findMapValue(node, key); v != nil {
		if v.Kind != yaml.MappingNode {
			*v = yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}
		}
		return v
	}
	v := &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}
	node.Content = append(node.Content, &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: key}, v)
	return v
}

// removeKey deletes key and its value from a mapping node.
func removeKey(node *yaml.Node, key string) {
	for i := 0; i < len(node.Content)-1; i += 2 {
		if node.Content[i].Kind == yaml.ScalarNode && strings.EqualFold(node.Content[i].Value, key) {
			node.Content = append(node.Content[:i], node.Content[i+2:]...)
			return
		}
	}
}
