package extract

import (
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/antchfx/htmlquery"
	"golang.org/x/net/html"

	"github.com/IshaanNene/webrag/internal/scope"
)

// XPath expressions for embedded payload discovery.
const (
	jsonScriptXPath  = `//script[contains(@type, 'json') or @type = 'importmap' or @id = '__NEXT_DATA__']`
	dataAttrXPath    = `//*[@data-json or @data-props]`
	looseScriptXPath = `//script[not(@src) and not(contains(@type, 'json')) and not(@type = 'importmap') and not(@id = '__NEXT_DATA__')]`
)

// Result holds what a page contributes to the crawl.
type Result struct {
	// Links are in-scope URLs in discovery order, as resolved with the
	// fragment removed. Two links with the same canonical form appear once.
	Links []string
	// Text is component text recovered from JSON data, only for component modules.
	Text []string
}

// Links collects outbound links from anchors, inline JSON payloads and loose
// script source. Relative hrefs resolve against the document's <base href>
// when present, else against currentURL. Every returned link has passed
// filter.
func Links(markup, currentURL string, filter *scope.Filter) Result {
	base, err := url.Parse(currentURL)
	if err != nil || !base.IsAbs() {
		return Result{}
	}

	c := &collector{filter: filter, seen: make(map[string]bool)}

	if doc, err := goquery.NewDocumentFromReader(strings.NewReader(markup)); err == nil {
		c.anchors(doc, documentBase(doc, base))
	}

	walker := NewWalker(scope.IsComponentModule(currentURL))
	if root, err := htmlquery.Parse(strings.NewReader(markup)); err == nil {
		walkPayloads(root, walker)
		walkLooseScripts(root, walker)
		if scope.IsComponentModule(currentURL) {
			walkSource(htmlquery.InnerText(root), walker)
		}
	}

	for _, link := range walker.Links() {
		c.add(link)
	}

	return Result{Links: c.links, Text: walker.Texts()}
}

type collector struct {
	filter *scope.Filter
	seen   map[string]bool
	links  []string
}

func (c *collector) anchors(doc *goquery.Document, base *url.URL) {
	doc.Find("a[href]").Each(func(_ int, sel *goquery.Selection) {
		href, ok := sel.Attr("href")
		if !ok {
			return
		}
		href = strings.TrimSpace(href)
		if href == "" || skipHref(href) {
			return
		}

		ref, err := url.Parse(href)
		if err != nil {
			return
		}
		c.add(base.ResolveReference(ref).String())
	})
}

func (c *collector) add(candidate string) {
	if !c.filter.Included(candidate) {
		return
	}
	canonical := scope.Canonicalize(candidate)
	if c.seen[canonical] {
		return
	}
	c.seen[canonical] = true
	c.links = append(c.links, scope.StripFragment(candidate))
}

// documentBase applies the first <base href> to base.
func documentBase(doc *goquery.Document, base *url.URL) *url.URL {
	href, ok := doc.Find("base[href]").First().Attr("href")
	if !ok {
		return base
	}
	ref, err := url.Parse(strings.TrimSpace(href))
	if err != nil {
		return base
	}
	return base.ResolveReference(ref)
}

func skipHref(href string) bool {
	lower := strings.ToLower(href)
	for _, prefix := range []string{"javascript:", "mailto:", "tel:", "data:"} {
		if strings.HasPrefix(lower, prefix) {
			return true
		}
	}
	return false
}

// walkPayloads feeds JSON script bodies and data attributes to w.
func walkPayloads(root *html.Node, w *Walker) {
	if nodes, err := htmlquery.QueryAll(root, jsonScriptXPath); err == nil {
		for _, n := range nodes {
			w.WalkRaw(htmlquery.InnerText(n))
		}
	}

	if nodes, err := htmlquery.QueryAll(root, dataAttrXPath); err == nil {
		for _, n := range nodes {
			for _, attr := range n.Attr {
				if attr.Key == "data-json" || attr.Key == "data-props" {
					w.WalkRaw(attr.Val)
				}
			}
		}
	}
}

// walkLooseScripts scans non-JSON inline scripts for object literals.
func walkLooseScripts(root *html.Node, w *Walker) {
	nodes, err := htmlquery.QueryAll(root, looseScriptXPath)
	if err != nil {
		return
	}
	for _, n := range nodes {
		walkSource(htmlquery.InnerText(n), w)
	}
}

func walkSource(src string, w *Walker) {
	walkNested(src, w, 0)
}

// walkNested decodes each balanced span of src. A span that is not JSON,
// such as a function body, is searched again inside its outer braces.
func walkNested(src string, w *Walker, level int) {
	for _, candidate := range ScanObjects(src) {
		if w.WalkRaw(candidate) || level >= MaxObjectDepth {
			continue
		}
		walkNested(candidate[1:len(candidate)-1], w, level+1)
	}
}
