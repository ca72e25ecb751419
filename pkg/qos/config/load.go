package config

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// Format is the encoding of a configuration file
type Format string

const (
	// FormatYAML is a YAML document with a top level "qos" key
	FormatYAML Format = "yaml"
	// FormatSet is a list of "set qos ..." commands
	FormatSet Format = "set"
)

// presenceKeys are the nodes which carry meaning without a value
var presenceKeys = map[string]struct{}{
	"flow-isolation-nat": {},
	"ack":                {},
	"syn":                {},
	"linkshare":          {},
	"realtime":           {},
	"upperlimit":         {},
}

// ParseFormat returns the Format named by s
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(s)); f {
	case FormatYAML, FormatSet:
		return f, nil
	case "yml":
		return FormatYAML, nil
	}
	return "", errors.Errorf("unknown config format %q", s)
}

// DetectFormat guesses the Format of a file from its extension
func DetectFormat(path string) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return FormatYAML
	}
	return FormatSet
}

// LoadFile reads and decodes the configuration file at path. An empty format is detected
// from the file extension.
func LoadFile(path string, format Format) (*QoS, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read configuration file %q", path)
	}
	if format == "" {
		format = DetectFormat(path)
	}
	cfg, err := Load(data, format)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to parse configuration file %q", path)
	}
	return cfg, nil
}

// Load decodes a configuration of the given format
func Load(data []byte, format Format) (*QoS, error) {
	var root *yaml.Node
	switch format {
	case FormatYAML:
		var doc yaml.Node
		if err := yaml.Unmarshal(data, &doc); err != nil {
			return nil, err
		}
		root = &doc
	case FormatSet:
		var err error
		if root, err = ParseSetCommands(bytes.NewReader(data)); err != nil {
			return nil, err
		}
	default:
		return nil, errors.Errorf("unknown config format %q", format)
	}

	doc := Document{}
	if root.Kind == 0 {
		// empty input
		return &doc.QoS, nil
	}
	normalizePresence(root)
	if err := root.Decode(&doc); err != nil {
		return nil, err
	}
	return &doc.QoS, nil
}

// normalizePresence turns null valued presence nodes ("upperlimit:") into empty mappings
// so they decode the same way as "upperlimit: {}".
func normalizePresence(n *yaml.Node) {
	switch n.Kind {
	case yaml.DocumentNode, yaml.SequenceNode:
		for _, c := range n.Content {
			normalizePresence(c)
		}
	case yaml.MappingNode:
		for i := 0; i+1 < len(n.Content); i += 2 {
			k, v := n.Content[i], n.Content[i+1]
			if _, ok := presenceKeys[k.Value]; ok && v.Kind == yaml.ScalarNode && v.ShortTag() == "!!null" {
				v.Kind = yaml.MappingNode
				v.Tag = "!!map"
				v.Value = ""
				continue
			}
			normalizePresence(v)
		}
	}
}
