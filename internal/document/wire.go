package document

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
)

// wireNode is the JSON form of a node exchanged with extractors.
type wireNode struct {
	Name       string                     `json:"name"`
	Attributes map[string]json.RawMessage `json:"attributes,omitempty"`
	Children   []wireNode                 `json:"children,omitempty"`
}

// Decode reads a tree in JSON wire form:
//
//	{"name": "...", "attributes": {"k": "s" | 1.5 | true}, "children": [...]}
func Decode(r io.Reader) (*Tree, error) {
	var root wireNode
	dec := json.NewDecoder(r)
	if err := dec.Decode(&root); err != nil {
		return nil, fmt.Errorf("decode document: %w", err)
	}
	node, err := root.toNode()
	if err != nil {
		return nil, err
	}
	t := New(node)
	if err := t.Validate(); err != nil {
		return nil, err
	}
	return t, nil
}

// Parse decodes a tree from bytes.
func Parse(data []byte) (*Tree, error) {
	return Decode(bytes.NewReader(data))
}

func (w wireNode) toNode() (*Node, error) {
	if w.Name == "" {
		return nil, ErrEmptyName
	}
	n := NewNode(w.Name)
	for name, raw := range w.Attributes {
		v, err := decodeValue(raw)
		if err != nil {
			return nil, fmt.Errorf("attribute %q of %q: %w", name, w.Name, err)
		}
		n.Attrs[name] = v
	}
	for _, c := range w.Children {
		child, err := c.toNode()
		if err != nil {
			return nil, err
		}
		n.Children = append(n.Children, child)
	}
	return n, nil
}

func decodeValue(raw json.RawMessage) (Value, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return Value{}, err
	}
	switch x := v.(type) {
	case string:
		return String(x), nil
	case bool:
		return Bool(x), nil
	case json.Number:
		f, err := strconv.ParseFloat(x.String(), 64)
		if err != nil {
			return Value{}, fmt.Errorf("%w: %s", ErrUnsupportedValue, x)
		}
		return Number(f), nil
	default:
		return Value{}, fmt.Errorf("%w: %s", ErrUnsupportedValue, string(raw))
	}
}

// MarshalJSON encodes the tree in the same wire form Decode reads.
func (t *Tree) MarshalJSON() ([]byte, error) {
	if t == nil || t.Root == nil {
		return nil, ErrNoRoot
	}
	w, err := toWire(t.Root)
	if err != nil {
		return nil, err
	}
	return json.Marshal(w)
}

func toWire(n *Node) (wireNode, error) {
	w := wireNode{Name: n.Name}
	if len(n.Attrs) > 0 {
		w.Attributes = make(map[string]json.RawMessage, len(n.Attrs))
		for name, v := range n.Attrs {
			raw, err := encodeValue(v)
			if err != nil {
				return wireNode{}, err
			}
			w.Attributes[name] = raw
		}
	}
	for _, c := range n.Children {
		cw, err := toWire(c)
		if err != nil {
			return wireNode{}, err
		}
		w.Children = append(w.Children, cw)
	}
	return w, nil
}

func encodeValue(v Value) (json.RawMessage, error) {
	switch v.Kind() {
	case KindNumber:
		s, err := FormatNumber(v.Num())
		if err != nil {
			return nil, err
		}
		return json.RawMessage(s), nil
	case KindBool:
		return json.RawMessage(strconv.FormatBool(v.Bool())), nil
	case KindString:
		return json.Marshal(v.Str())
	default:
		return nil, ErrUnsupportedValue
	}
}
