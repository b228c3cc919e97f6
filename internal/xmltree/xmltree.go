// Package xmltree parses XML into a lightweight navigable node tree.
//
// Bureau documents arrive with inconsistent namespace prefixes and
// element casing depending on the upstream gateway, so lookups here
// match on local names and accept alias lists.
package xmltree

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"io"
	"strings"
)

// Node is one XML element. Text is the concatenated character data of
// the element itself, not its children.
type Node struct {
	Name     string
	Attrs    map[string]string
	Text     string
	Children []*Node
}

// Parse reads an XML document and returns its root element.
func Parse(data []byte) (*Node, error) {
	dec := xml.NewDecoder(bytes.NewReader(data))
	// Bureau payloads occasionally declare legacy charsets; treat them
	// as already-decoded UTF-8.
	dec.CharsetReader = func(charset string, input io.Reader) (io.Reader, error) {
		return input, nil
	}

	var root *Node
	var stack []*Node
	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("parse xml: %w", err)
		}
		switch t := tok.(type) {
		case xml.StartElement:
			n := &Node{Name: t.Name.Local}
			if len(t.Attr) > 0 {
				n.Attrs = make(map[string]string, len(t.Attr))
				for _, a := range t.Attr {
					n.Attrs[a.Name.Local] = a.Value
				}
			}
			if len(stack) == 0 {
				if root != nil {
					return nil, fmt.Errorf("parse xml: multiple root elements")
				}
				root = n
			} else {
				parent := stack[len(stack)-1]
				parent.Children = append(parent.Children, n)
			}
			stack = append(stack, n)
		case xml.EndElement:
			if len(stack) > 0 {
				stack = stack[:len(stack)-1]
			}
		case xml.CharData:
			if len(stack) > 0 {
				stack[len(stack)-1].Text += string(t)
			}
		}
	}
	if root == nil {
		return nil, fmt.Errorf("parse xml: empty document")
	}
	return root, nil
}

// First returns the first child whose local name matches any of the
// given aliases, case-insensitively. Aliases are tried in document
// order against each child, so the earliest matching child wins.
func (n *Node) First(aliases ...string) *Node {
	if n == nil {
		return nil
	}
	for _, c := range n.Children {
		for _, a := range aliases {
			if strings.EqualFold(c.Name, a) {
				return c
			}
		}
	}
	return nil
}

// All returns every child whose local name matches any alias.
func (n *Node) All(aliases ...string) []*Node {
	if n == nil {
		return nil
	}
	var out []*Node
	for _, c := range n.Children {
		for _, a := range aliases {
			if strings.EqualFold(c.Name, a) {
				out = append(out, c)
				break
			}
		}
	}
	return out
}

// Field returns the trimmed text of the first matching child, or ""
// when absent. Missing fields are the common case in bureau sections.
func (n *Node) Field(aliases ...string) string {
	c := n.First(aliases...)
	if c == nil {
		return ""
	}
	return strings.TrimSpace(c.Text)
}

// Value returns the node's own trimmed text.
func (n *Node) Value() string {
	if n == nil {
		return ""
	}
	return strings.TrimSpace(n.Text)
}
