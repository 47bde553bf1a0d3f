package extract

import (
	"encoding/json"
	"net/url"
	"sort"
	"strings"
)

// TextKeys are the field names whose string values carry human-readable text
// in framework component data.
var TextKeys = map[string]bool{
	"text":        true,
	"title":       true,
	"description": true,
	"content":     true,
	"heading":     true,
	"label":       true,
	"body":        true,
	"subtitle":    true,
	"name":        true,
}

// Walker recursively visits decoded JSON values, collecting absolute
// http(s) URLs and, optionally, text under TextKeys.
type Walker struct {
	collectText bool
	links       []string
	texts       []string
	seenLinks   map[string]bool
	seenTexts   map[string]bool
}

// NewWalker creates a Walker. collectText enables the text pass.
func NewWalker(collectText bool) *Walker {
	return &Walker{
		collectText: collectText,
		seenLinks:   make(map[string]bool),
		seenTexts:   make(map[string]bool),
	}
}

// WalkRaw decodes raw as JSON and walks it. It reports whether raw parsed.
func (w *Walker) WalkRaw(raw string) bool {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return false
	}
	var v any
	if err := json.Unmarshal([]byte(raw), &v); err != nil {
		return false
	}
	w.Walk(v)
	return true
}

// Walk visits v and everything beneath it.
func (w *Walker) Walk(v any) {
	w.walk("", v)
}

// Links returns discovered URL candidates in discovery order.
func (w *Walker) Links() []string {
	return w.links
}

// Texts returns collected text values in discovery order.
func (w *Walker) Texts() []string {
	return w.texts
}

func (w *Walker) walk(key string, v any) {
	switch val := v.(type) {
	case map[string]any:
		keys := make([]string, 0, len(val))
		for k := range val {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			w.walk(k, val[k])
		}
	case []any:
		for _, item := range val {
			w.walk(key, item)
		}
	case string:
		w.visitString(key, val)
	}
}

func (w *Walker) visitString(key, s string) {
	s = strings.TrimSpace(s)
	if s == "" {
		return
	}

	if isAbsoluteHTTP(s) {
		if !w.seenLinks[s] {
			w.seenLinks[s] = true
			w.links = append(w.links, s)
		}
		return
	}

	if w.collectText && TextKeys[strings.ToLower(key)] {
		text := normalizeSpace(s)
		if text != "" && !w.seenTexts[text] {
			w.seenTexts[text] = true
			w.texts = append(w.texts, text)
		}
	}
}

// isAbsoluteHTTP reports whether s is an absolute http or https URL.
func isAbsoluteHTTP(s string) bool {
	if !strings.HasPrefix(s, "http://") && !strings.HasPrefix(s, "https://") {
		return false
	}
	if strings.ContainsAny(s, " \t\n") {
		return false
	}
	u, err := url.Parse(s)
	return err == nil && u.Host != ""
}
