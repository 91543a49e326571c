package document

import (
	"errors"
	"fmt"
	"maps"
	"slices"
	"unicode/utf8"
)

var (
	// ErrNonFiniteNumber indicates a NaN or infinite attribute value.
	ErrNonFiniteNumber = errors.New("non-finite number")

	// ErrUnsupportedValue indicates an attribute value that is not a string, number or bool.
	ErrUnsupportedValue = errors.New("unsupported attribute value")

	// ErrEmptyName indicates a node or attribute without a name.
	ErrEmptyName = errors.New("empty name")

	// ErrNoRoot indicates a tree without a root node.
	ErrNoRoot = errors.New("document has no root node")

	// ErrNilNode indicates a nil entry in a node's children.
	ErrNilNode = errors.New("nil node")

	// ErrInvalidText indicates a name or string value that is not valid
	// UTF-8 or holds a character XML 1.0 cannot carry.
	ErrInvalidText = errors.New("invalid text")
)

// Node is a named element with attributes and ordered children.
type Node struct {
	Name     string
	Attrs    map[string]Value
	Children []*Node
}

// NewNode creates an empty node.
func NewNode(name string) *Node {
	return &Node{Name: name, Attrs: map[string]Value{}}
}

// Set assigns an attribute and returns the node for chaining.
func (n *Node) Set(name string, v Value) *Node {
	if n.Attrs == nil {
		n.Attrs = map[string]Value{}
	}
	n.Attrs[name] = v
	return n
}

// Add appends children and returns the node for chaining.
func (n *Node) Add(children ...*Node) *Node {
	n.Children = append(n.Children, children...)
	return n
}

// AttrNames returns attribute names in sorted order.
func (n *Node) AttrNames() []string {
	return slices.Sorted(maps.Keys(n.Attrs))
}

// Equal compares two subtrees.
func (n *Node) Equal(o *Node) bool {
	if n == nil || o == nil {
		return n == o
	}
	if n.Name != o.Name || len(n.Attrs) != len(o.Attrs) || len(n.Children) != len(o.Children) {
		return false
	}
	for k, v := range n.Attrs {
		ov, ok := o.Attrs[k]
		if !ok || !v.Equal(ov) {
			return false
		}
	}
	for i := range n.Children {
		if !n.Children[i].Equal(o.Children[i]) {
			return false
		}
	}
	return true
}

// Tree is the content of one document.
type Tree struct {
	Root *Node
}

// New creates a tree around root.
func New(root *Node) *Tree { return &Tree{Root: root} }

// Equal compares two trees.
func (t *Tree) Equal(o *Tree) bool {
	if t == nil || o == nil {
		return t == o
	}
	return t.Root.Equal(o.Root)
}

// NodeCount counts all nodes.
func (t *Tree) NodeCount() int {
	if t == nil || t.Root == nil {
		return 0
	}
	count := 0
	_ = t.Walk(func(*Node, int) error { count++; return nil })
	return count
}

// Walk visits nodes depth first, parents before children, in child order.
func (t *Tree) Walk(fn func(n *Node, depth int) error) error {
	if t == nil || t.Root == nil {
		return ErrNoRoot
	}
	var visit func(n *Node, depth int) error
	visit = func(n *Node, depth int) error {
		if n == nil {
			return ErrNilNode
		}
		if err := fn(n, depth); err != nil {
			return err
		}
		for _, c := range n.Children {
			if err := visit(c, depth+1); err != nil {
				return err
			}
		}
		return nil
	}
	return visit(t.Root, 0)
}

// Validate checks that every node is present and named, every attribute is
// named, every number is finite and all text can be written to both output
// formats unchanged.
func (t *Tree) Validate() error {
	return t.Walk(func(n *Node, _ int) error {
		if n.Name == "" {
			return ErrEmptyName
		}
		if err := ValidText(n.Name); err != nil {
			return fmt.Errorf("node name: %w", err)
		}
		for _, name := range n.AttrNames() {
			if name == "" {
				return ErrEmptyName
			}
			if err := ValidText(name); err != nil {
				return fmt.Errorf("attribute name of %q: %w", n.Name, err)
			}
			v := n.Attrs[name]
			if _, err := v.Text(); err != nil {
				return fmt.Errorf("attribute %q of %q: %w", name, n.Name, err)
			}
			if v.Kind() == KindString {
				if err := ValidText(v.Str()); err != nil {
					return fmt.Errorf("attribute %q of %q: %w", name, n.Name, err)
				}
			}
		}
		return nil
	})
}

// ValidText rejects invalid UTF-8 and characters outside the XML 1.0 Char
// production (C0 controls other than tab, LF and CR; U+FFFE and U+FFFF).
func ValidText(s string) error {
	for i, r := range s {
		if r == utf8.RuneError {
			if _, size := utf8.DecodeRuneInString(s[i:]); size <= 1 {
				return fmt.Errorf("%w: invalid UTF-8 at byte %d", ErrInvalidText, i)
			}
		}
		if !xmlChar(r) {
			return fmt.Errorf("%w: character %U at byte %d", ErrInvalidText, r, i)
		}
	}
	return nil
}

func xmlChar(r rune) bool {
	switch {
	case r == '\t', r == '\n', r == '\r':
		return true
	case r < 0x20:
		return false
	case r == 0xFFFE, r == 0xFFFF:
		return false
	}
	return true
}
