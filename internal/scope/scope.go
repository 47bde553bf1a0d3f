// Package scope decides which URLs belong to a crawl and how they are
// canonicalized for visited-set membership.
package scope

import (
	"net/url"
	"path"
	"strings"
)

// ComponentModuleSuffix marks framework component-module files. URLs ending
// in it are kept even when they carry a fragment.
const ComponentModuleSuffix = ".mjs"

// ExcludedExtensions lists binary and media file extensions never crawled.
var ExcludedExtensions = []string{
	// images
	".png", ".jpg", ".jpeg", ".gif", ".bmp", ".webp", ".svg", ".ico", ".tif", ".tiff", ".avif",
	// documents
	".pdf", ".doc", ".docx", ".xls", ".xlsx", ".ppt", ".pptx", ".odt", ".rtf", ".epub",
	// audio
	".mp3", ".wav", ".ogg", ".flac", ".aac", ".m4a",
	// video
	".mp4", ".avi", ".mov", ".wmv", ".flv", ".mkv", ".webm", ".m4v",
	// archives
	".zip", ".tar", ".gz", ".tgz", ".rar", ".7z", ".bz2", ".xz",
	// binaries and fonts
	".exe", ".dmg", ".iso", ".bin", ".woff", ".woff2", ".ttf", ".eot",
}

var defaultPorts = map[string]string{"http": "80", "https": "443"}

// StripFragment returns rawURL without its fragment, leaving everything else
// as written. Unparseable input is returned unchanged.
func StripFragment(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return rawURL
	}
	u.Fragment = ""
	u.RawFragment = ""
	return u.String()
}

// Filter is the crawl's scope predicate for a single registered domain.
type Filter struct {
	domain   string
	excluded map[string]struct{}
}

// New creates a Filter for the given hostname. A full URL is accepted too,
// in which case its hostname is used.
func New(domain string) *Filter {
	d := strings.ToLower(strings.TrimSpace(domain))
	if strings.Contains(d, "://") {
		if u, err := url.Parse(d); err == nil {
			d = u.Hostname()
		}
	}

	excluded := make(map[string]struct{}, len(ExcludedExtensions))
	for _, ext := range ExcludedExtensions {
		excluded[ext] = struct{}{}
	}
	return &Filter{domain: d, excluded: excluded}
}

// Domain returns the registered hostname.
func (f *Filter) Domain() string {
	return f.domain
}

// Included reports whether candidate may be crawled.
func (f *Filter) Included(candidate string) bool {
	u, err := url.Parse(strings.TrimSpace(candidate))
	if err != nil || !u.IsAbs() || u.Host == "" {
		return false
	}

	scheme := strings.ToLower(u.Scheme)
	if scheme != "http" && scheme != "https" {
		return false
	}

	if strings.ToLower(u.Hostname()) != f.domain {
		return false
	}

	if f.IsExcludedPath(u.Path) {
		return false
	}

	// A fragment only addresses part of a page already reachable without it.
	if u.Fragment != "" || strings.HasSuffix(candidate, "#") {
		return strings.HasSuffix(u.Path, ComponentModuleSuffix)
	}

	return true
}

// IsExcludedPath reports whether p ends in an excluded media extension.
func (f *Filter) IsExcludedPath(p string) bool {
	ext := strings.ToLower(path.Ext(p))
	if ext == "" {
		return false
	}
	_, ok := f.excluded[ext]
	return ok
}

// Canonicalize lowercases the scheme and host, drops the scheme's default
// port, and strips the fragment and a single trailing slash. Unparseable
// input is returned unchanged.
func Canonicalize(rawURL string) string {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return rawURL
	}

	u.Scheme = strings.ToLower(u.Scheme)
	u.Host = strings.ToLower(u.Host)
	if port := u.Port(); port != "" && port == defaultPorts[u.Scheme] {
		u.Host = strings.TrimSuffix(u.Host, ":"+port)
	}

	u.Fragment = ""
	u.RawFragment = ""

	if strings.HasSuffix(u.Path, "/") {
		u.Path = u.Path[:len(u.Path)-1]
		u.RawPath = strings.TrimSuffix(u.RawPath, "/")
	}
	return u.String()
}

// IsComponentModule reports whether rawURL points at a component-module file.
func IsComponentModule(rawURL string) bool {
	u, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	return strings.HasSuffix(u.Path, ComponentModuleSuffix)
}
