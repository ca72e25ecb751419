package config

import (
	"bufio"
	"io"

	"github.com/google/shlex"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// Node kinds of the set command grammar. The grammar has no schema of its own so
// the kind of each token is decided from its name and its parent.
type tokenKind int

const (
	tokenLeaf tokenKind = iota
	tokenContainer
	// tokenTag is a container keyed by the token that follows it (class 10, match ssh)
	tokenTag
)

var containerTokens = map[string]struct{}{
	"policy":     {},
	"default":    {},
	"linkshare":  {},
	"realtime":   {},
	"upperlimit": {},
	"ip":         {},
	"ipv6":       {},
	"ether":      {},
	"tcp":        {},
}

var tagTokens = map[string]struct{}{
	"class":      {},
	"match":      {},
	"precedence": {},
}

// leaves that take several values
var multiValueTokens = map[string]struct{}{
	"match-group": {},
}

func classify(parent, tok string) tokenKind {
	switch {
	case parent == "" && (tok == "interface" || tok == "traffic-match-group"):
		return tokenTag
	case parent == "policy":
		// policy type, followed by the policy name
		return tokenTag
	case (tok == "source" || tok == "destination") && (parent == "ip" || parent == "ipv6"):
		return tokenContainer
	}
	if _, ok := tagTokens[tok]; ok {
		return tokenTag
	}
	if _, ok := containerTokens[tok]; ok {
		return tokenContainer
	}
	return tokenLeaf
}

type setNode struct {
	keys     []string
	children map[string]*setNode
	values   []string
}

func (n *setNode) child(key string) *setNode {
	if n.children == nil {
		n.children = make(map[string]*setNode)
	}
	c, ok := n.children[key]
	if !ok {
		c = &setNode{}
		n.children[key] = c
		n.keys = append(n.keys, key)
	}
	return c
}

func (n *setNode) toYAML() *yaml.Node {
	if n.children == nil {
		switch len(n.values) {
		case 0:
			// presence node
			return &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}
		case 1:
			return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: n.values[0]}
		}
		seq := &yaml.Node{Kind: yaml.SequenceNode, Tag: "!!seq"}
		for _, v := range n.values {
			seq.Content = append(seq.Content, &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: v})
		}
		return seq
	}

	m := &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}
	for _, k := range n.keys {
		m.Content = append(m.Content,
			&yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: k}, n.children[k].toYAML())
	}
	return m
}

// ParseSetCommands parses a list of "set qos ..." configuration commands into a YAML document
// node with the same layout as a YAML configuration file. Empty lines and lines starting with
// '#' are ignored.
func ParseSetCommands(r io.Reader) (*yaml.Node, error) {
	root := &setNode{}
	qos := root.child("qos")

	scanner := bufio.NewScanner(r)
	lineNum := 0
	for scanner.Scan() {
		lineNum++
		tokens, err := shlex.Split(scanner.Text())
		if err != nil {
			return nil, errors.Wrapf(err, "line %d", lineNum)
		}
		if len(tokens) == 0 {
			continue
		}
		if len(tokens) < 3 || tokens[0] != "set" || tokens[1] != "qos" {
			return nil, errors.Errorf("line %d: expected \"set qos ...\" command", lineNum)
		}
		if err := applySet(qos, tokens[2:]); err != nil {
			return nil, errors.Wrapf(err, "line %d", lineNum)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, errors.Wrap(err, "failed to read set commands")
	}

	return &yaml.Node{Kind: yaml.DocumentNode, Content: []*yaml.Node{root.toYAML()}}, nil
}

func applySet(node *setNode, tokens []string) error {
	parent := ""
	for i := 0; i < len(tokens); i++ {
		tok := tokens[i]
		switch classify(parent, tok) {
		case tokenTag:
			if i+1 == len(tokens) {
				return errors.Errorf("%q requires a name", tok)
			}
			node = node.child(tok).child(tokens[i+1])
			i++
		case tokenContainer:
			node = node.child(tok)
		case tokenLeaf:
			leaf := node.child(tok)
			if leaf.children != nil {
				return errors.Errorf("%q is not a value node", tok)
			}
			switch len(tokens) - i {
			case 1:
				// valueless leaf
			case 2:
				if _, ok := multiValueTokens[tok]; ok {
					leaf.values = appendUnique(leaf.values, tokens[i+1])
				} else {
					leaf.values = []string{tokens[i+1]}
				}
			default:
				return errors.Errorf("unexpected %q after value of %q", tokens[i+2], tok)
			}
			return nil
		}
		parent = tok
	}
	return nil
}

func appendUnique(values []string, v string) []string {
	for _, e := range values {
		if e == v {
			return values
		}
	}
	return append(values, v)
}
