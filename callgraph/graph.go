package callgraph

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
)

const (
	nodesKey       = "nodes"
	displayNameKey = "display_name"
	bodyKey        = "body"
	similarKey     = "similar_lemmas"
)

// Graph is a call graph document.
type Graph struct {
	fields map[string]json.RawMessage
	Nodes  []*Node
}

// Node is one function of the call graph. Similar is written to the
// "similar_lemmas" key; a node without similar lemmas has no such key.
type Node struct {
	fields      map[string]json.RawMessage
	DisplayName string
	Body        string
	Similar     []SimilarLemma
}

// SimilarLemma is one related lemma attached to a node.
type SimilarLemma struct {
	Name       string  `json:"name"`
	Score      float64 `json:"score"`
	FilePath   string  `json:"file_path"`
	LineNumber *int    `json:"line_number"`
	Signature  string  `json:"signature"`
}

// ReadGraph decodes a call graph. A document without a "nodes" key has no nodes.
func ReadGraph(r io.Reader) (*Graph, error) {
	var fields map[string]json.RawMessage
	if err := json.NewDecoder(r).Decode(&fields); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidGraph, err)
	}
	if fields == nil {
		return nil, fmt.Errorf("%w: document is null", ErrInvalidGraph)
	}
	g := &Graph{fields: fields}

	raw, ok := fields[nodesKey]
	if !ok {
		return g, nil
	}
	var nodes []map[string]json.RawMessage
	if err := json.Unmarshal(raw, &nodes); err != nil {
		return nil, fmt.Errorf("%w: nodes: %w", ErrInvalidGraph, err)
	}
	for i, nf := range nodes {
		if nf == nil {
			return nil, fmt.Errorf("%w: node %d is null", ErrInvalidGraph, i)
		}
		n := &Node{fields: nf}
		if err := stringField(nf, displayNameKey, &n.DisplayName); err != nil {
			return nil, fmt.Errorf("%w: node %d: %w", ErrInvalidGraph, i, err)
		}
		if err := stringField(nf, bodyKey, &n.Body); err != nil {
			return nil, fmt.Errorf("%w: node %d: %w", ErrInvalidGraph, i, err)
		}
		if err := similarField(nf, &n.Similar); err != nil {
			return nil, fmt.Errorf("%w: node %d: %w", ErrInvalidGraph, i, err)
		}
		g.Nodes = append(g.Nodes, n)
	}
	return g, nil
}

// stringField reads an optional string; null counts as absent.
func stringField(fields map[string]json.RawMessage, key string, dst *string) error {
	raw, ok := fields[key]
	if !ok {
		return nil
	}
	var s *string
	if err := json.Unmarshal(raw, &s); err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	if s != nil {
		*dst = *s
	}
	return nil
}

func similarField(fields map[string]json.RawMessage, dst *[]SimilarLemma) error {
	raw, ok := fields[similarKey]
	if !ok {
		return nil
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return fmt.Errorf("%s: %w", similarKey, err)
	}
	return nil
}

// LoadGraph reads a call graph file.
func LoadGraph(path string) (*Graph, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return ReadGraph(f)
}

// MarshalJSON renders the document with the current node annotations.
func (g *Graph) MarshalJSON() ([]byte, error) {
	out := make(map[string]json.RawMessage, len(g.fields)+1)
	for k, v := range g.fields {
		out[k] = v
	}
	if _, ok := g.fields[nodesKey]; ok || len(g.Nodes) > 0 {
		nodes := make([]map[string]json.RawMessage, len(g.Nodes))
		for i, n := range g.Nodes {
			m, err := n.encode()
			if err != nil {
				return nil, err
			}
			nodes[i] = m
		}
		raw, err := json.Marshal(nodes)
		if err != nil {
			return nil, err
		}
		out[nodesKey] = raw
	}
	return json.Marshal(out)
}

func (n *Node) encode() (map[string]json.RawMessage, error) {
	m := make(map[string]json.RawMessage, len(n.fields)+1)
	for k, v := range n.fields {
		m[k] = v
	}
	delete(m, similarKey)
	if len(n.Similar) > 0 {
		raw, err := json.Marshal(n.Similar)
		if err != nil {
			return nil, err
		}
		m[similarKey] = raw
	}
	return m, nil
}

// Write writes the indented document to w.
func (g *Graph) Write(w io.Writer) error {
	data, err := json.MarshalIndent(g, "", "  ")
	if err != nil {
		return err
	}
	_, err = w.Write(append(data, '\n'))
	return err
}

// WriteFile writes the document to path.
func (g *Graph) WriteFile(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating call graph: %w", err)
	}
	if err := g.Write(f); err != nil {
		f.Close()
		return fmt.Errorf("writing call graph: %w", err)
	}
	return f.Close()
}
