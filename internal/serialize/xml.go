package serialize

import (
	"bytes"
	"encoding/xml"
	"strings"

	"git.home.luguber.info/inful/catminer/internal/document"
)

const indentUnit = "  "

// XML renders the tree as
//
//	<node name="..."><attr name="..." type="string|number|bool">v</attr>...</node>
//
// with attributes sorted by name ahead of child nodes. Trees that fail
// document validation are rejected rather than rendered lossily.
func XML(tree *document.Tree) ([]byte, error) {
	if err := tree.Validate(); err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	buf.WriteString(xml.Header)
	if err := writeXMLNode(&buf, tree.Root, 0); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func writeXMLNode(buf *bytes.Buffer, n *document.Node, depth int) error {
	if n == nil {
		return document.ErrNilNode
	}
	if n.Name == "" {
		return document.ErrEmptyName
	}
	indent := strings.Repeat(indentUnit, depth)
	buf.WriteString(indent)
	buf.WriteString(`<node name="`)
	escape(buf, n.Name)
	buf.WriteString(`"`)

	if len(n.Attrs) == 0 && len(n.Children) == 0 {
		buf.WriteString("/>\n")
		return nil
	}
	buf.WriteString(">\n")

	inner := indent + indentUnit
	for _, name := range n.AttrNames() {
		if name == "" {
			return document.ErrEmptyName
		}
		v := n.Attrs[name]
		text, err := v.Text()
		if err != nil {
			return err
		}
		buf.WriteString(inner)
		buf.WriteString(`<attr name="`)
		escape(buf, name)
		buf.WriteString(`" type="`)
		buf.WriteString(string(v.Kind()))
		buf.WriteString(`">`)
		escape(buf, text)
		buf.WriteString("</attr>\n")
	}
	for _, c := range n.Children {
		if err := writeXMLNode(buf, c, depth+1); err != nil {
			return err
		}
	}

	buf.WriteString(indent)
	buf.WriteString("</node>\n")
	return nil
}

// escape writes s escaped for both attribute and character data. s has
// passed document.ValidText, so nothing is replaced.
func escape(buf *bytes.Buffer, s string) {
	_ = xml.EscapeText(buf, []byte(s))
}
