package facts

import (
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// Render writes the table as indented HTML. classes is appended to the
// "dataframe" class on the <table> element.
func (t *Table) Render(classes string) string {
	class := strings.TrimSpace("dataframe " + classes)
	table := element(atom.Table, html.Attribute{Key: "border", Val: "1"}, html.Attribute{Key: "class", Val: class})

	thead := element(atom.Thead)
	head := element(atom.Tr, html.Attribute{Key: "style", Val: "text-align: right;"})
	if t.Index != "" {
		appendIndented(head, cell(atom.Th, ""), 3)
	}
	for _, c := range t.Columns {
		appendIndented(head, cell(atom.Th, c), 3)
	}
	appendIndented(thead, head, 2)

	if t.Index != "" {
		names := element(atom.Tr)
		appendIndented(names, cell(atom.Th, t.Index), 3)
		for range t.Columns {
			appendIndented(names, cell(atom.Th, ""), 3)
		}
		appendIndented(thead, names, 2)
	}
	appendIndented(table, thead, 1)

	tbody := element(atom.Tbody)
	for i, row := range t.Rows {
		tr := element(atom.Tr)
		if t.Index != "" {
			appendIndented(tr, cell(atom.Th, t.Keys[i]), 3)
		}
		for _, v := range row {
			appendIndented(tr, cell(atom.Td, v), 3)
		}
		appendIndented(tbody, tr, 2)
	}
	appendIndented(table, tbody, 1)

	var b strings.Builder
	// Rendering a freshly built element tree into a strings.Builder cannot fail.
	_ = html.Render(&b, table)
	return b.String()
}

func element(a atom.Atom, attrs ...html.Attribute) *html.Node {
	return &html.Node{Type: html.ElementNode, DataAtom: a, Data: a.String(), Attr: attrs}
}

func cell(a atom.Atom, text string) *html.Node {
	n := element(a)
	if text != "" {
		n.AppendChild(&html.Node{Type: html.TextNode, Data: text})
	}
	return n
}

// appendIndented adds child to parent on its own line at depth, keeping
// the closing tag of parent aligned one level up.
func appendIndented(parent, child *html.Node, depth int) {
	if last := parent.LastChild; last != nil && last.Type == html.TextNode {
		parent.RemoveChild(last)
	}
	parent.AppendChild(&html.Node{Type: html.TextNode, Data: "\n" + strings.Repeat("  ", depth)})
	parent.AppendChild(child)
	parent.AppendChild(&html.Node{Type: html.TextNode, Data: "\n" + strings.Repeat("  ", depth-1)})
}
