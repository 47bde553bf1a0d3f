// Package extract turns rendered markup into document text and crawl links.
package extract

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
)

// Selectors used to locate and clean page content.
const (
	noiseSelector   = "script, style, noscript, nav, meta, link, iframe, svg, template, object, embed, [hidden]"
	primarySelector = "main, #main, #content, [role=main]"
	articleSelector = "article, .article, .post, .content, .entry-content"
)

// blockElements start a new text section when entered or left.
var blockElements = map[string]bool{
	"address": true, "article": true, "aside": true, "blockquote": true,
	"br": true, "caption": true, "dd": true, "details": true, "dialog": true,
	"div": true, "dl": true, "dt": true, "fieldset": true, "figcaption": true,
	"figure": true, "footer": true, "form": true, "h1": true, "h2": true,
	"h3": true, "h4": true, "h5": true, "h6": true, "header": true, "hr": true,
	"li": true, "main": true, "ol": true, "p": true, "pre": true,
	"section": true, "summary": true, "table": true, "td": true, "th": true,
	"tr": true, "ul": true,
}

// Text extracts readable text from markup. It prefers the primary content
// region, then article-like regions in document order, then the whole page.
// An empty string means the page had no extractable text.
func Text(markup string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(markup))
	if err != nil {
		return ""
	}

	doc.Find(noiseSelector).Remove()
	for _, n := range doc.Nodes {
		removeComments(n)
	}

	var containers *goquery.Selection
	if primary := doc.Find(primarySelector).First(); primary.Length() > 0 {
		containers = primary
	} else if articles := topLevel(doc.Find(articleSelector), articleSelector); articles.Length() > 0 {
		containers = articles
	} else if body := doc.Find("body"); body.Length() > 0 {
		containers = body
	} else {
		containers = doc.Selection
	}

	var sections []string
	containers.Each(func(_ int, s *goquery.Selection) {
		for _, n := range s.Nodes {
			sections = append(sections, collectSections(n)...)
		}
	})

	return strings.Join(sections, "\n\n")
}

// Title returns the page <title>, falling back to the first <h1>.
func Title(markup string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(markup))
	if err != nil {
		return ""
	}
	if t := normalizeSpace(doc.Find("title").First().Text()); t != "" {
		return t
	}
	return normalizeSpace(doc.Find("h1").First().Text())
}

// topLevel drops matches nested inside another match so text is not
// counted twice.
func topLevel(sel *goquery.Selection, selector string) *goquery.Selection {
	return sel.FilterFunction(func(_ int, s *goquery.Selection) bool {
		return s.ParentsFiltered(selector).Length() == 0
	})
}

// collectSections walks n and returns whitespace-normalized text sections,
// split at block element boundaries.
func collectSections(n *html.Node) []string {
	var sections []string
	var buf strings.Builder

	flush := func() {
		if s := normalizeSpace(buf.String()); s != "" {
			sections = append(sections, s)
		}
		buf.Reset()
	}

	var walk func(*html.Node)
	walk = func(n *html.Node) {
		switch n.Type {
		case html.TextNode:
			buf.WriteString(n.Data)
			return
		case html.ElementNode:
			if blockElements[n.Data] {
				flush()
				defer flush()
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	flush()

	return sections
}

// removeComments detaches every comment node under n.
func removeComments(n *html.Node) {
	for c := n.FirstChild; c != nil; {
		next := c.NextSibling
		if c.Type == html.CommentNode {
			n.RemoveChild(c)
		} else {
			removeComments(c)
		}
		c = next
	}
}

func normalizeSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
