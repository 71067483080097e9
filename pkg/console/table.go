package console

import (
	"fmt"
	"io"
	"strings"

	"github.com/olekukonko/tablewriter"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// Table is a result table extracted from the HTML sent by the backend
type Table struct {
	Header []string
	Rows   [][]string
}

// ParseTable extracts the first <table> of markup. It returns nil, nil when
// markup holds no table.
func ParseTable(markup string) (*Table, error) {
	if strings.TrimSpace(markup) == "" {
		return nil, nil
	}
	doc, err := html.Parse(strings.NewReader(markup))
	if err != nil {
		return nil, fmt.Errorf("failed to parse table: %w", err)
	}

	node := find(doc, atom.Table)
	if node == nil {
		return nil, nil
	}

	t := &Table{}
	walk(node, func(n *html.Node) bool {
		if n.Type != html.ElementNode || n.DataAtom != atom.Tr {
			return true
		}
		cells, header := rowCells(n)
		if header && t.Header == nil && len(t.Rows) == 0 {
			t.Header = cells
		} else {
			t.Rows = append(t.Rows, cells)
		}
		return false
	})
	return t, nil
}

// Render writes the table to w
func (t *Table) Render(w io.Writer) error {
	table := tablewriter.NewWriter(w)
	if len(t.Header) > 0 {
		table.Header(toAny(t.Header)...)
	}
	for _, row := range t.Rows {
		if err := table.Append(toAny(row)...); err != nil {
			return err
		}
	}
	return table.Render()
}

// rowCells returns the text of each cell of tr and whether every cell is
// a <th>
func rowCells(tr *html.Node) ([]string, bool) {
	var cells []string
	header := true
	for n := tr.FirstChild; n != nil; n = n.NextSibling {
		if n.Type != html.ElementNode {
			continue
		}
		switch n.DataAtom {
		case atom.Th:
		case atom.Td:
			header = false
		default:
			continue
		}
		cells = append(cells, strings.Join(strings.Fields(text(n)), " "))
	}
	return cells, header && len(cells) > 0
}

func find(n *html.Node, a atom.Atom) *html.Node {
	var found *html.Node
	walk(n, func(n *html.Node) bool {
		if found != nil {
			return false
		}
		if n.Type == html.ElementNode && n.DataAtom == a {
			found = n
			return false
		}
		return true
	})
	return found
}

// walk visits n depth-first. fn returns false to skip the children of a node.
func walk(n *html.Node, fn func(*html.Node) bool) {
	if !fn(n) {
		return
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		walk(c, fn)
	}
}

func text(n *html.Node) string {
	var b strings.Builder
	walk(n, func(n *html.Node) bool {
		if n.Type == html.TextNode {
			b.WriteString(n.Data)
		}
		return true
	})
	return b.String()
}

func toAny(ss []string) []any {
	out := make([]any, len(ss))
	for i, s := range ss {
		out[i] = s
	}
	return out
}
