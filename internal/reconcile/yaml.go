package reconcile

import (
	"bytes"
	"errors"
	"io"
	"strings"

	"gopkg.in/yaml.v3"
)

// reconcileYAML edits the yaml.v3 node tree so key order and comments
// survive re-encoding.
func reconcileYAML(content string, resolved []ServerConfig, endpoint string) (string, bool) {
	dec := yaml.NewDecoder(strings.NewReader(content))
	var doc yaml.Node
	if err := dec.Decode(&doc); err != nil {
		return "", false
	}
	var next yaml.Node
	if err := dec.Decode(&next); !errors.Is(err, io.EOF) {
		// more than one document, or trailing garbage
		return "", false
	}
	if doc.Kind != yaml.DocumentNode || len(doc.Content) == 0 {
		return "", false
	}
	root := doc.Content[0]
	if root.Kind != yaml.MappingNode {
		return "", false
	}
	// A flow-style root would re-encode starting with '{' and sniff as JSON.
	root.Style &^= yaml.FlowStyle

	keyIdx := mappingKey(root, "servers")
	var seq *yaml.Node
	if keyIdx >= 0 {
		if v := deref(root.Content[keyIdx+1]); v.Kind == yaml.SequenceNode && len(v.Content) > 0 {
			seq = v
		}
	}

	switch {
	case seq != nil:
		current := make([]string, len(seq.Content))
		for i, item := range seq.Content {
			current[i], _ = yamlServerURL(deref(item))
		}
		offset, n := overwriteRange(current, resolved, endpoint)
		for i := 0; i < n; i++ {
			setServerURL(deref(seq.Content[offset+i]), resolved[i].URL)
		}
		if endpoint != "" && !yamlHasServer(seq, endpoint) {
			seq.Content = append([]*yaml.Node{yamlServerEntry(endpoint)}, seq.Content...)
		}
	case endpoint != "":
		list := &yaml.Node{Kind: yaml.SequenceNode, Tag: "!!seq", Content: []*yaml.Node{yamlServerEntry(endpoint)}}
		if keyIdx >= 0 {
			root.Content[keyIdx+1] = list
		} else {
			root.Content = append(root.Content, strScalar("servers"), list)
		}
	}

	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(&doc); err != nil {
		return "", false
	}
	if err := enc.Close(); err != nil {
		return "", false
	}
	return buf.String(), true
}

// mappingKey returns the index of key's key node in m.Content, or -1.
func mappingKey(m *yaml.Node, key string) int {
	for i := 0; i+1 < len(m.Content); i += 2 {
		k := m.Content[i]
		if k.Kind == yaml.ScalarNode && k.Value == key {
			return i
		}
	}
	return -1
}

func deref(n *yaml.Node) *yaml.Node {
	for n.Kind == yaml.AliasNode && n.Alias != nil {
		n = n.Alias
	}
	return n
}

func setServerURL(entry *yaml.Node, u string) {
	if entry.Kind != yaml.MappingNode {
		return
	}
	idx := mappingKey(entry, "url")
	if idx < 0 {
		entry.Content = append(entry.Content, strScalar("url"), strScalar(u))
		return
	}
	v := entry.Content[idx+1]
	if v.Kind != yaml.ScalarNode {
		entry.Content[idx+1] = strScalar(u)
		return
	}
	v.Value = u
	v.Tag = "!!str"
	if v.Style&(yaml.LiteralStyle|yaml.FoldedStyle) != 0 {
		v.Style = 0
	}
}

func yamlServerURL(entry *yaml.Node) (string, bool) {
	if entry.Kind != yaml.MappingNode {
		return "", false
	}
	idx := mappingKey(entry, "url")
	if idx < 0 {
		return "", false
	}
	v := deref(entry.Content[idx+1])
	if v.Kind != yaml.ScalarNode {
		return "", false
	}
	return v.Value, true
}

func yamlHasServer(seq *yaml.Node, endpoint string) bool {
	for _, item := range seq.Content {
		if u, ok := yamlServerURL(deref(item)); ok && normalizeURL(u) == endpoint {
			return true
		}
	}
	return false
}

func yamlServerEntry(u string) *yaml.Node {
	return &yaml.Node{
		Kind:    yaml.MappingNode,
		Tag:     "!!map",
		Content: []*yaml.Node{strScalar("url"), strScalar(u)},
	}
}

func strScalar(v string) *yaml.Node {
	return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: v}
}
