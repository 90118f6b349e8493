package dynfile

import (
	"bytes"
	"encoding/json"
	"fmt"

	"gopkg.in/yaml.v3"
)

// ChangeMatrix records, per category and id, whether an entry changed.
// Iteration follows category registration order, then id insertion order.
type ChangeMatrix struct {
	categories []Category
	ids        map[Category][]string
	changed    map[Category]map[string]bool
}

// NewChangeMatrix creates an empty matrix with the given category order
func NewChangeMatrix(categories ...Category) *ChangeMatrix {
	m := &ChangeMatrix{
		ids:     make(map[Category][]string),
		changed: make(map[Category]map[string]bool),
	}
	for _, c := range categories {
		m.addCategory(c)
	}
	return m
}

func (m *ChangeMatrix) addCategory(c Category) {
	if _, ok := m.changed[c]; ok {
		return
	}
	m.categories = append(m.categories, c)
	m.changed[c] = make(map[string]bool)
}

// Set records the flag for an entry. It returns false if the entry was
// already present, in which case the flags are OR-ed.
func (m *ChangeMatrix) Set(c Category, id string, changed bool) bool {
	m.addCategory(c)
	prev, exists := m.changed[c][id]
	if !exists {
		m.ids[c] = append(m.ids[c], id)
	}
	m.changed[c][id] = prev || changed
	return !exists
}

// Get returns the flag of an entry and whether it exists
func (m *ChangeMatrix) Get(c Category, id string) (bool, bool) {
	ids, ok := m.changed[c]
	if !ok {
		return false, false
	}
	v, ok := ids[id]
	return v, ok
}

// Categories returns categories in registration order
func (m *ChangeMatrix) Categories() []Category {
	out := make([]Category, len(m.categories))
	copy(out, m.categories)
	return out
}

// IDs returns the ids of a category in insertion order
func (m *ChangeMatrix) IDs(c Category) []string {
	out := make([]string, len(m.ids[c]))
	copy(out, m.ids[c])
	return out
}

// AnyChanged reports whether at least one entry changed
func (m *ChangeMatrix) AnyChanged() bool {
	for _, ids := range m.changed {
		for _, v := range ids {
			if v {
				return true
			}
		}
	}
	return false
}

// CategoryChanged reports whether any entry of the category changed
func (m *ChangeMatrix) CategoryChanged(c Category) bool {
	for _, v := range m.changed[c] {
		if v {
			return true
		}
	}
	return false
}

// MarshalJSON writes the matrix as a nested object keeping iteration order.
func (m *ChangeMatrix) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, c := range m.categories {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(string(c))
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteString(":{")
		for j, id := range m.ids[c] {
			if j > 0 {
				buf.WriteByte(',')
			}
			idKey, err := json.Marshal(id)
			if err != nil {
				return nil, err
			}
			buf.Write(idKey)
			fmt.Fprintf(&buf, ":%t", m.changed[c][id])
		}
		buf.WriteByte('}')
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// MarshalYAML returns an ordered mapping node.
func (m *ChangeMatrix) MarshalYAML() (interface{}, error) {
	root := &yaml.Node{Kind: yaml.MappingNode}
	for _, c := range m.categories {
		inner := &yaml.Node{Kind: yaml.MappingNode}
		for _, id := range m.ids[c] {
			inner.Content = append(inner.Content,
				&yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: id},
				&yaml.Node{Kind: yaml.ScalarNode, Tag: "!!bool", Value: fmt.Sprintf("%t", m.changed[c][id])},
			)
		}
		root.Content = append(root.Content,
			&yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: string(c)},
			inner,
		)
	}
	return root, nil
}
