package k8s

import (
	"fmt"

	"gopkg.in/yaml.v3"
)

// Helpers for surgical edits on decoded yaml.Node trees. Working on the
// node tree instead of typed structs keeps every field we do not model
// intact when a manifest is re-emitted.

func docRoot(n *yaml.Node) (*yaml.Node, error) {
	if n.Kind == yaml.DocumentNode {
		if len(n.Content) == 0 {
			return nil, fmt.Errorf("empty yaml document")
		}
		return n.Content[0], nil
	}
	return n, nil
}

// mapValue returns the value node for key in a mapping node, or nil.
func mapValue(m *yaml.Node, key string) *yaml.Node {
	if m == nil || m.Kind != yaml.MappingNode {
		return nil
	}
	for i := 0; i+1 < len(m.Content); i += 2 {
		if m.Content[i].Value == key {
			return m.Content[i+1]
		}
	}
	return nil
}

// ensureMapValue returns the value node for key, appending an empty mapping
// under that key when absent.
func ensureMapValue(m *yaml.Node, key string) *yaml.Node {
	if v := mapValue(m, key); v != nil {
		return v
	}
	keyNode := &yaml.Node{Kind: yaml.ScalarNode, Value: key}
	valNode := &yaml.Node{Kind: yaml.MappingNode}
	m.Content = append(m.Content, keyNode, valNode)
	return valNode
}

// setMapValue replaces (or appends) the value for key.
func setMapValue(m *yaml.Node, key string, v *yaml.Node) {
	for i := 0; i+1 < len(m.Content); i += 2 {
		if m.Content[i].Value == key {
			m.Content[i+1] = v
			return
		}
	}
	keyNode := &yaml.Node{Kind: yaml.ScalarNode, Value: key}
	m.Content = append(m.Content, keyNode, v)
}

func encodeNode(v any) (*yaml.Node, error) {
	n := &yaml.Node{}
	if err := n.Encode(v); err != nil {
		return nil, fmt.Errorf("encode yaml node: %w", err)
	}
	return n, nil
}

// filterSequence keeps only the sequence items the predicate accepts.
func filterSequence(seq *yaml.Node, keep func(item *yaml.Node) bool) {
	if seq == nil || seq.Kind != yaml.SequenceNode {
		return
	}
	kept := seq.Content[:0]
	for _, item := range seq.Content {
		if keep(item) {
			kept = append(kept, item)
		}
	}
	seq.Content = kept
}

// specNodeFor navigates to the pod spec mapping for the manifest kind,
// creating intermediate mappings when ensure is set.
func specNodeFor(root *yaml.Node, kind string, ensure bool) (*yaml.Node, error) {
	var path []string
	switch kind {
	case "Pod":
		path = []string{"spec"}
	case "Deployment":
		path = []string{"spec", "template", "spec"}
	default:
		return nil, fmt.Errorf("unsupported manifest kind %q", kind)
	}

	node := root
	for _, key := range path {
		var next *yaml.Node
		if ensure {
			next = ensureMapValue(node, key)
		} else {
			next = mapValue(node, key)
		}
		if next == nil {
			return nil, nil
		}
		node = next
	}
	return node, nil
}
