// Package xml provides parsing, XPath lookup, editing and serialization of
// score trees on top of xmlquery.
//
// Security Notes:
//   - XXE (External Entity) attacks are mitigated because xmlquery parses with
//     Go's encoding/xml, which never fetches external entities.
//
// Serialization writes MuseScore's layout. An element is re-indented with
// two spaces only when it holds child elements separated by nothing but
// newline indentation runs, and either opened with such a run or had no
// text at all on input. Everything else, including any rich text element,
// is written verbatim so that text content never changes. Comments,
// processing instructions and directives are kept in place.
package xml

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"strings"

	"github.com/antchfx/xmlquery"
	"github.com/antchfx/xpath"

	"github.com/diedeno/mscz-concatenator/core/encoding"
)

// Indent is the indentation unit used by Serialize.
const Indent = "  "

// Document represents a parsed XML document.
type Document struct {
	root *xmlquery.Node
}

// Parse parses XML data and returns a Document.
func Parse(data []byte) (*Document, error) {
	root, err := xmlquery.Parse(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("parsing XML: %w", err)
	}
	return &Document{root: root}, nil
}

// Node returns the underlying document node.
func (d *Document) Node() *xmlquery.Node {
	return d.root
}

// Root returns the root element of the document.
func (d *Document) Root() *xmlquery.Node {
	if d.root == nil {
		return nil
	}
	for child := d.root.FirstChild; child != nil; child = child.NextSibling {
		if child.Type == xmlquery.ElementNode {
			return child
		}
	}
	return nil
}

// XPath executes an XPath query against the whole document.
func (d *Document) XPath(expr string) ([]*xmlquery.Node, error) {
	return QueryAll(d.root, expr)
}

// QueryAll compiles expr and returns every match below top.
func QueryAll(top *xmlquery.Node, expr string) ([]*xmlquery.Node, error) {
	compiled, err := xpath.Compile(expr)
	if err != nil {
		return nil, fmt.Errorf("invalid xpath: %w", err)
	}
	return xmlquery.QuerySelectorAll(top, compiled), nil
}

// Select returns every match of a precompiled expression below top.
func Select(top *xmlquery.Node, expr *xpath.Expr) []*xmlquery.Node {
	if top == nil {
		return nil
	}
	return xmlquery.QuerySelectorAll(top, expr)
}

// SelectOne returns the first match of a precompiled expression, or nil.
func SelectOne(top *xmlquery.Node, expr *xpath.Expr) *xmlquery.Node {
	if top == nil {
		return nil
	}
	return xmlquery.QuerySelector(top, expr)
}

// Serialize converts the document back to XML bytes.
func (d *Document) Serialize() []byte {
	if d.root == nil {
		return nil
	}
	var buf bytes.Buffer
	writeNode(&buf, d.root, 0)
	return buf.Bytes()
}

// SerializeNode renders a single subtree, starting at depth zero.
func SerializeNode(n *xmlquery.Node) string {
	var buf bytes.Buffer
	writeNode(&buf, n, 0)
	return buf.String()
}

func writeNode(w *bytes.Buffer, n *xmlquery.Node, depth int) {
	switch n.Type {
	case xmlquery.DocumentNode:
		for child := n.FirstChild; child != nil; child = child.NextSibling {
			if child.Type == xmlquery.TextNode && strings.TrimSpace(child.Data) == "" {
				continue
			}
			writeNode(w, child, depth)
		}

	case xmlquery.DeclarationNode:
		writeDeclaration(w, n)

	case xmlquery.ElementNode:
		writeIndent(w, depth)
		writeElement(w, n, depth)
		w.WriteString("\n")

	case xmlquery.TextNode:
		if text := strings.TrimSpace(n.Data); text != "" {
			writeIndent(w, depth)
			w.WriteString(encoding.EscapeXMLText(text))
			w.WriteString("\n")
		}

	case xmlquery.CharDataNode:
		writeIndent(w, depth)
		writeInline(w, n)
		w.WriteString("\n")

	case xmlquery.CommentNode, xmlquery.ProcessingInstruction, xmlquery.NotationNode:
		writeIndent(w, depth)
		writeInline(w, n)
		w.WriteString("\n")
	}
}

func writeDeclaration(w *bytes.Buffer, n *xmlquery.Node) {
	if n.Data != "" && n.Data != "xml" {
		w.WriteString("<?")
		w.WriteString(n.Data)
		w.WriteString("?>\n")
		return
	}
	if len(n.Attr) == 0 {
		w.WriteString(`<?xml version="1.0" encoding="UTF-8"?>` + "\n")
		return
	}
	w.WriteString("<?xml")
	for _, attr := range n.Attr {
		w.WriteString(" ")
		w.WriteString(attr.Name.Local)
		w.WriteString("=\"")
		w.WriteString(encoding.EscapeXMLAttr(attr.Value))
		w.WriteString("\"")
	}
	w.WriteString("?>\n")
}

// contentMode describes how an element's children are laid out.
type contentMode int

const (
	modeEmpty contentMode = iota
	modeText
	modeElements
	modeMixed
)

// richText names elements whose children are formatted text. Their
// whitespace is content, so they are never re-indented.
var richText = map[string]bool{"text": true}

func classify(n *xmlquery.Node) contentMode {
	if n.FirstChild == nil {
		return modeEmpty
	}
	hasElements, hasText, hasIndent := false, false, false
	for child := n.FirstChild; child != nil; child = child.NextSibling {
		switch child.Type {
		case xmlquery.ElementNode, xmlquery.CommentNode,
			xmlquery.ProcessingInstruction, xmlquery.NotationNode:
			hasElements = true
		case xmlquery.TextNode:
			if isIndent(child.Data) {
				hasIndent = true
			} else {
				hasText = true
			}
		case xmlquery.CharDataNode:
			hasText = true
		}
	}
	switch {
	case !hasElements:
		// Text alone, including a bare newline, is kept as written.
		return modeText
	case hasText, richText[n.Data]:
		return modeMixed
	case !hasIndent:
		return modeElements
	case n.FirstChild.Type == xmlquery.TextNode:
		return modeElements
	}
	// Spans separated by newlines without a leading indentation run.
	return modeMixed
}

// isIndent reports whether s is a newline-bearing whitespace run.
func isIndent(s string) bool {
	return strings.Contains(s, "\n") && strings.TrimSpace(s) == ""
}

func writeStartTag(w *bytes.Buffer, n *xmlquery.Node) {
	w.WriteString("<")
	w.WriteString(qualifiedName(n))
	for _, attr := range n.Attr {
		w.WriteString(" ")
		if attr.Name.Space != "" {
			w.WriteString(attr.Name.Space)
			w.WriteString(":")
		}
		w.WriteString(attr.Name.Local)
		w.WriteString("=\"")
		w.WriteString(encoding.EscapeXMLAttr(attr.Value))
		w.WriteString("\"")
	}
}

func writeEndTag(w *bytes.Buffer, n *xmlquery.Node) {
	w.WriteString("</")
	w.WriteString(qualifiedName(n))
	w.WriteString(">")
}

func qualifiedName(n *xmlquery.Node) string {
	if n.Prefix != "" {
		return n.Prefix + ":" + n.Data
	}
	return n.Data
}

// writeElement writes n without leading indentation or trailing newline.
func writeElement(w *bytes.Buffer, n *xmlquery.Node, depth int) {
	writeStartTag(w, n)
	switch classify(n) {
	case modeEmpty:
		w.WriteString("/>")
		return

	case modeText, modeMixed:
		w.WriteString(">")
		for child := n.FirstChild; child != nil; child = child.NextSibling {
			writeInline(w, child)
		}

	case modeElements:
		w.WriteString(">\n")
		for child := n.FirstChild; child != nil; child = child.NextSibling {
			if child.Type == xmlquery.TextNode {
				continue
			}
			writeNode(w, child, depth+1)
		}
		writeIndent(w, depth)
	}
	writeEndTag(w, n)
}

// writeInline writes n and its subtree with no added whitespace.
func writeInline(w *bytes.Buffer, n *xmlquery.Node) {
	switch n.Type {
	case xmlquery.ElementNode:
		writeStartTag(w, n)
		if n.FirstChild == nil {
			w.WriteString("/>")
			return
		}
		w.WriteString(">")
		for child := n.FirstChild; child != nil; child = child.NextSibling {
			writeInline(w, child)
		}
		writeEndTag(w, n)
	case xmlquery.TextNode:
		w.WriteString(encoding.EscapeXMLText(n.Data))
	case xmlquery.CharDataNode:
		w.WriteString("<![CDATA[")
		w.WriteString(n.Data)
		w.WriteString("]]>")
	case xmlquery.CommentNode:
		w.WriteString("<!--")
		w.WriteString(encoding.EscapeComment(n.Data))
		w.WriteString("-->")
	case xmlquery.ProcessingInstruction:
		w.WriteString("<?")
		if n.ProcInst != nil {
			w.WriteString(n.ProcInst.Target)
			if n.ProcInst.Inst != "" {
				w.WriteString(" ")
				w.WriteString(n.ProcInst.Inst)
			}
		} else {
			w.WriteString(n.Data)
		}
		w.WriteString("?>")
	case xmlquery.NotationNode:
		w.WriteString("<!")
		w.WriteString(n.Data)
		w.WriteString(">")
	}
}

func writeIndent(w *bytes.Buffer, depth int) {
	for i := 0; i < depth; i++ {
		w.WriteString(Indent)
	}
}

// Clone returns a detached deep copy of n.
func Clone(n *xmlquery.Node) *xmlquery.Node {
	if n == nil {
		return nil
	}
	c := &xmlquery.Node{
		Type:         n.Type,
		Data:         n.Data,
		Prefix:       n.Prefix,
		NamespaceURI: n.NamespaceURI,
	}
	if len(n.Attr) > 0 {
		c.Attr = make([]xmlquery.Attr, len(n.Attr))
		copy(c.Attr, n.Attr)
	}
	if n.ProcInst != nil {
		pi := *n.ProcInst
		c.ProcInst = &pi
	}
	for child := n.FirstChild; child != nil; child = child.NextSibling {
		xmlquery.AddChild(c, Clone(child))
	}
	return c
}

// Append attaches child as the last child of parent.
func Append(parent, child *xmlquery.Node) {
	xmlquery.AddChild(parent, child)
}

// InsertBefore attaches the detached node n as the previous sibling of ref.
func InsertBefore(ref, n *xmlquery.Node) {
	parent := ref.Parent
	n.Parent = parent
	n.NextSibling = ref
	n.PrevSibling = ref.PrevSibling
	if ref.PrevSibling != nil {
		ref.PrevSibling.NextSibling = n
	} else if parent != nil {
		parent.FirstChild = n
	}
	ref.PrevSibling = n
}

// Remove detaches n from its parent.
func Remove(n *xmlquery.Node) {
	if n != nil && n.Parent != nil {
		xmlquery.RemoveFromTree(n)
	}
}

// NewElement creates a detached element.
func NewElement(name string) *xmlquery.Node {
	return &xmlquery.Node{Type: xmlquery.ElementNode, Data: name}
}

// NewTextElement creates a detached element holding text.
func NewTextElement(name, text string) *xmlquery.Node {
	n := NewElement(name)
	SetText(n, text)
	return n
}

// Children returns the child element nodes.
func Children(n *xmlquery.Node) []*xmlquery.Node {
	if n == nil {
		return nil
	}
	var children []*xmlquery.Node
	for child := n.FirstChild; child != nil; child = child.NextSibling {
		if child.Type == xmlquery.ElementNode {
			children = append(children, child)
		}
	}
	return children
}

// ChildrenNamed returns the child elements called name.
func ChildrenNamed(n *xmlquery.Node, name string) []*xmlquery.Node {
	if n == nil {
		return nil
	}
	var children []*xmlquery.Node
	for child := n.FirstChild; child != nil; child = child.NextSibling {
		if child.Type == xmlquery.ElementNode && child.Data == name {
			children = append(children, child)
		}
	}
	return children
}

// Child returns the first child element called name, or nil.
func Child(n *xmlquery.Node, name string) *xmlquery.Node {
	if n == nil {
		return nil
	}
	for child := n.FirstChild; child != nil; child = child.NextSibling {
		if child.Type == xmlquery.ElementNode && child.Data == name {
			return child
		}
	}
	return nil
}

// EnsureChild returns the first child called name, creating it if needed.
func EnsureChild(n *xmlquery.Node, name string) *xmlquery.Node {
	if c := Child(n, name); c != nil {
		return c
	}
	c := NewElement(name)
	Append(n, c)
	return c
}

// Text returns the text content of n and its descendants.
func Text(n *xmlquery.Node) string {
	if n == nil {
		return ""
	}
	return n.InnerText()
}

// ChildText returns the trimmed text of the first child called name, and
// whether that child exists.
func ChildText(n *xmlquery.Node, name string) (string, bool) {
	c := Child(n, name)
	if c == nil {
		return "", false
	}
	return strings.TrimSpace(c.InnerText()), true
}

// SetText replaces every child of n with a single text node.
func SetText(n *xmlquery.Node, text string) {
	n.FirstChild, n.LastChild = nil, nil
	if text == "" {
		return
	}
	xmlquery.AddChild(n, &xmlquery.Node{Type: xmlquery.TextNode, Data: text})
}

// Attr returns the value of a specific attribute.
func Attr(n *xmlquery.Node, name string) string {
	if n == nil {
		return ""
	}
	return n.SelectAttr(name)
}

// HasAttr reports whether n carries the attribute name.
func HasAttr(n *xmlquery.Node, name string) bool {
	if n == nil {
		return false
	}
	for _, attr := range n.Attr {
		if attr.Name.Space == "" && attr.Name.Local == name {
			return true
		}
	}
	return false
}

// SetAttr sets or adds an unprefixed attribute.
func SetAttr(n *xmlquery.Node, name, value string) {
	for i, attr := range n.Attr {
		if attr.Name.Space == "" && attr.Name.Local == name {
			n.Attr[i].Value = value
			return
		}
	}
	n.Attr = append(n.Attr, xmlquery.Attr{Name: xml.Name{Local: name}, Value: value})
}
