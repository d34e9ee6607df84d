package article

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/antchfx/htmlquery"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// StrategyFunc extracts marker lines from a content container.
type StrategyFunc func(container *goquery.Selection, marker string) []string

// Strategy is a named extraction strategy.
type Strategy struct {
	Name    string
	Extract StrategyFunc
}

// DefaultStrategies returns the strategies in priority order.
func DefaultStrategies() []Strategy {
	return []Strategy{
		{Name: "br-sibling", Extract: BRSibling},
		{Name: "paragraph", Extract: Paragraph},
		{Name: "block", Extract: Block},
	}
}

// Run applies strategies in order and returns the first non-empty result
// with the name of the strategy that produced it.
func Run(container *goquery.Selection, marker string, strategies []Strategy) ([]string, string) {
	for _, s := range strategies {
		if lines := s.Extract(container, marker); len(lines) > 0 {
			return lines, s.Name
		}
	}
	return nil, ""
}

// BRSibling collects the text node immediately following each <br>.
func BRSibling(container *goquery.Selection, marker string) []string {
	var lines []string
	for _, n := range container.Nodes {
		brs, err := htmlquery.QueryAll(n, ".//br")
		if err != nil {
			return nil
		}
		for _, br := range brs {
			next := br.NextSibling
			if next == nil || next.Type != html.TextNode {
				continue
			}
			lines = appendMarked(lines, next.Data, marker)
		}
	}
	return lines
}

// Paragraph collects the full text of each <p>.
func Paragraph(container *goquery.Selection, marker string) []string {
	var lines []string
	container.Find("p").Each(func(_ int, p *goquery.Selection) {
		lines = appendMarked(lines, p.Text(), marker)
	})
	return lines
}

// Block splits the container's text on line breaks. Breaks come from
// newlines in the text, <br> and block-level element boundaries; inline
// elements stay on the line they appear in.
func Block(container *goquery.Selection, marker string) []string {
	var b strings.Builder
	for _, n := range container.Nodes {
		blockText(&b, n)
	}
	var lines []string
	for _, line := range strings.Split(b.String(), "\n") {
		lines = appendMarked(lines, line, marker)
	}
	return lines
}

var blockElements = map[atom.Atom]bool{
	atom.Address: true, atom.Article: true, atom.Aside: true, atom.Blockquote: true,
	atom.Dd: true, atom.Div: true, atom.Dl: true, atom.Dt: true,
	atom.Figcaption: true, atom.Figure: true, atom.Footer: true, atom.Form: true,
	atom.H1: true, atom.H2: true, atom.H3: true, atom.H4: true, atom.H5: true, atom.H6: true,
	atom.Header: true, atom.Hr: true, atom.Li: true, atom.Main: true, atom.Nav: true,
	atom.Ol: true, atom.P: true, atom.Pre: true, atom.Section: true, atom.Table: true,
	atom.Tr: true, atom.Td: true, atom.Th: true, atom.Ul: true,
}

func blockText(b *strings.Builder, n *html.Node) {
	switch n.Type {
	case html.TextNode:
		b.WriteString(n.Data)
		return
	case html.ElementNode:
		switch n.DataAtom {
		case atom.Br:
			b.WriteByte('\n')
			return
		case atom.Script, atom.Style, atom.Noscript:
			return
		}
	}

	block := n.Type == html.ElementNode && blockElements[n.DataAtom]
	if block {
		b.WriteByte('\n')
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		blockText(b, c)
	}
	if block {
		b.WriteByte('\n')
	}
}

func appendMarked(lines []string, text, marker string) []string {
	text = strings.TrimSpace(text)
	if text == "" || !strings.Contains(text, marker) {
		return lines
	}
	return append(lines, text)
}
