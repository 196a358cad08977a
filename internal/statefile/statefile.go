// Package statefile loads state documents from disk into value trees and
// watches them for changes. JSON, TOML and YAML are supported; object keys
// are NFC-normalized so that visually identical keys compare equal no matter
// which editor produced the file.
package statefile

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"golang.org/x/text/unicode/norm"
	"gopkg.in/yaml.v3"

	"github.com/tonimelisma/statetracker/pkg/value"
)

// Format identifies a document encoding.
type Format string

// Supported formats.
const (
	FormatJSON Format = "json"
	FormatTOML Format = "toml"
	FormatYAML Format = "yaml"
)

// Sentinel errors for document loading.
var (
	ErrUnknownFormat = errors.New("statefile: unknown document format")
	ErrNotContainer  = errors.New("statefile: document root is not an object or array")
)

// FormatOf picks the format from the file extension.
func FormatOf(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return FormatJSON, nil
	case ".toml":
		return FormatTOML, nil
	case ".yaml", ".yml":
		return FormatYAML, nil
	default:
		return "", fmt.Errorf("statefile: %s: %w", path, ErrUnknownFormat)
	}
}

// Load reads path and decodes it according to its extension.
func Load(path string) (any, error) {
	format, err := FormatOf(path)
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("statefile: reading %s: %w", path, err)
	}

	doc, err := Decode(data, format)
	if err != nil {
		return nil, fmt.Errorf("statefile: %s: %w", path, err)
	}

	return doc, nil
}

// Decode converts data into an *value.Object or *value.Array. JSON and YAML
// keep document key order; TOML tables come out with sorted keys.
func Decode(data []byte, format Format) (any, error) {
	var (
		doc any
		err error
	)

	switch format {
	case FormatJSON:
		doc, err = decodeJSON(data)
	case FormatTOML:
		doc, err = decodeTOML(data)
	case FormatYAML:
		doc, err = decodeYAML(data)
	default:
		return nil, fmt.Errorf("statefile: format %q: %w", format, ErrUnknownFormat)
	}

	if err != nil {
		return nil, err
	}

	if !value.IsTrackable(doc) {
		return nil, fmt.Errorf("decoded %s: %w", value.Kind(doc), ErrNotContainer)
	}

	return doc, nil
}

// NormalizeKey returns the NFC form of a key or path segment.
func NormalizeKey(s string) string {
	return norm.NFC.String(s)
}

// NormalizePath returns p with every segment NFC-normalized.
func NormalizePath(p value.Path) value.Path {
	out := make(value.Path, len(p))
	for i, key := range p {
		out[i] = NormalizeKey(key)
	}

	return out
}

func decodeJSON(data []byte) (any, error) {
	doc, err := value.DecodeJSON(data)
	if err != nil {
		return nil, err
	}

	return normalizeTree(doc), nil
}

// normalizeTree rebuilds freshly decoded containers with NFC keys.
func normalizeTree(v any) any {
	switch x := v.(type) {
	case *value.Object:
		o := value.NewObject()
		for _, k := range x.Keys() {
			child, _ := x.Get(k)
			o.Set(NormalizeKey(k), normalizeTree(child))
		}

		return o
	case *value.Array:
		items := x.Items()
		for i, item := range items {
			items[i] = normalizeTree(item)
		}

		return value.NewArray(items...)
	default:
		return v
	}
}

func decodeTOML(data []byte) (any, error) {
	var m map[string]any
	if _, err := toml.Decode(string(data), &m); err != nil {
		return nil, fmt.Errorf("decoding TOML: %w", err)
	}

	if m == nil {
		m = map[string]any{}
	}

	return value.NormalizeKeys(m, NormalizeKey), nil
}

func decodeYAML(data []byte) (any, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("decoding YAML: %w", err)
	}

	return fromYAMLNode(&doc)
}

// fromYAMLNode walks the node tree rather than decoding into maps so that
// mapping order survives.
func fromYAMLNode(n *yaml.Node) (any, error) {
	switch n.Kind {
	case 0:
		return nil, nil
	case yaml.DocumentNode:
		if len(n.Content) == 0 {
			return nil, nil
		}

		return fromYAMLNode(n.Content[0])
	case yaml.AliasNode:
		return fromYAMLNode(n.Alias)
	case yaml.MappingNode:
		o := value.NewObject()

		for i := 0; i+1 < len(n.Content); i += 2 {
			k, v := n.Content[i], n.Content[i+1]
			if k.Kind != yaml.ScalarNode {
				return nil, fmt.Errorf("decoding YAML: line %d: mapping key must be a scalar", k.Line)
			}

			child, err := fromYAMLNode(v)
			if err != nil {
				return nil, err
			}

			o.Set(NormalizeKey(k.Value), child)
		}

		return o, nil
	case yaml.SequenceNode:
		a := value.NewArray()

		for _, item := range n.Content {
			child, err := fromYAMLNode(item)
			if err != nil {
				return nil, err
			}

			a.Append(child)
		}

		return a, nil
	case yaml.ScalarNode:
		var v any
		if err := n.Decode(&v); err != nil {
			return nil, fmt.Errorf("decoding YAML: line %d: %w", n.Line, err)
		}

		return v, nil
	default:
		return nil, fmt.Errorf("decoding YAML: line %d: unsupported node kind %d", n.Line, n.Kind)
	}
}
