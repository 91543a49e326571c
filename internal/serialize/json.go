package serialize

import (
	"bytes"
	"encoding/json"

	"git.home.luguber.info/inful/catminer/internal/document"
)

type jsonNode struct {
	Name       string         `json:"name"`
	Attributes map[string]any `json:"attributes"`
	Children   []jsonNode     `json:"children"`
}

// JSON renders the tree as nested {"name","attributes","children"} objects.
// Attribute keys are sorted; numbers are plain decimals.
func JSON(tree *document.Tree) ([]byte, error) {
	if err := tree.Validate(); err != nil {
		return nil, err
	}
	root, err := toJSONNode(tree.Root)
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", indentUnit)
	if err := enc.Encode(root); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func toJSONNode(n *document.Node) (jsonNode, error) {
	if n == nil {
		return jsonNode{}, document.ErrNilNode
	}
	if n.Name == "" {
		return jsonNode{}, document.ErrEmptyName
	}
	out := jsonNode{
		Name:       n.Name,
		Attributes: make(map[string]any, len(n.Attrs)),
		Children:   make([]jsonNode, 0, len(n.Children)),
	}
	for name, v := range n.Attrs {
		if name == "" {
			return jsonNode{}, document.ErrEmptyName
		}
		switch v.Kind() {
		case document.KindNumber:
			s, err := document.FormatNumber(v.Num())
			if err != nil {
				return jsonNode{}, err
			}
			out.Attributes[name] = json.Number(s)
		case document.KindBool:
			out.Attributes[name] = v.Bool()
		case document.KindString:
			out.Attributes[name] = v.Str()
		default:
			return jsonNode{}, document.ErrUnsupportedValue
		}
	}
	for _, c := range n.Children {
		child, err := toJSONNode(c)
		if err != nil {
			return jsonNode{}, err
		}
		out.Children = append(out.Children, child)
	}
	return out, nil
}
