// Package encoding provides the text escaping used when score trees are
// written back to markup.
package encoding

import (
	"strings"
)

var (
	textReplacer = strings.NewReplacer(
		"&", "&amp;",
		"<", "&lt;",
		">", "&gt;",
	)
	attrReplacer = strings.NewReplacer(
		"&", "&amp;",
		"<", "&lt;",
		">", "&gt;",
		"\"", "&quot;",
		"\n", "&#10;",
		"\r", "&#13;",
		"\t", "&#9;",
	)
)

// EscapeXMLText escapes only the basic XML entities for text content.
// Quotes are left alone, matching how MuseScore writes element text.
func EscapeXMLText(s string) string {
	return textReplacer.Replace(s)
}

// EscapeXMLAttr escapes text for use in double-quoted XML attributes.
// Includes quote escaping in addition to basic XML entities. Line breaks and
// tabs are written as character references so attribute value normalization
// does not fold them into spaces on the next read.
func EscapeXMLAttr(s string) string {
	return attrReplacer.Replace(s)
}

// EscapeComment makes s safe to embed in an XML comment by breaking up
// double hyphens.
func EscapeComment(s string) string {
	for strings.Contains(s, "--") {
		s = strings.ReplaceAll(s, "--", "- -")
	}
	return s
}
