package pipeline

import (
	"log/slog"
	"regexp"
	"strings"

	"github.com/IshaanNene/webrag/internal/types"
)

// piiPattern pairs a PII category with its detector. Order matters: the
// more specific patterns run before the looser phone patterns.
type piiPattern struct {
	name string
	re   *regexp.Regexp
}

// PIIRedactMiddleware replaces personally identifiable information in
// document content before it is embedded.
type PIIRedactMiddleware struct {
	patterns []piiPattern
	logger   *slog.Logger
}

func NewPIIRedactMiddleware(logger *slog.Logger) *PIIRedactMiddleware {
	return &PIIRedactMiddleware{
		patterns: []piiPattern{
			{"email", regexp.MustCompile(`[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}`)},
			{"ssn", regexp.MustCompile(`\b\d{3}-\d{2}-\d{4}\b`)},
			{"credit_card", regexp.MustCompile(`\b(?:\d{4}[-\s]?){3}\d{4}\b`)},
			{"ip_v4", regexp.MustCompile(`\b\d{1,3}\.\d{1,3}\.\d{1,3}\.\d{1,3}\b`)},
			{"phone_intl", regexp.MustCompile(`\+\d{1,3}[-.\s]?\(?\d{1,4}\)?[-.\s]?\d{1,4}[-.\s]?\d{1,9}`)},
			{"phone_us", regexp.MustCompile(`\b\d{3}[-.]?\d{3}[-.]?\d{4}\b`)},
		},
		logger: logger.With("component", "pii_redact"),
	}
}

func (m *PIIRedactMiddleware) Name() string { return "pii_redact" }

func (m *PIIRedactMiddleware) Process(doc *types.Document) (*types.Document, error) {
	s := doc.Content
	for _, p := range m.patterns {
		if p.re.MatchString(s) {
			s = p.re.ReplaceAllString(s, "[REDACTED_"+strings.ToUpper(p.name)+"]")
			m.logger.Debug("PII redacted", "url", doc.SourceURL, "type", p.name)
		}
	}
	doc.Content = s
	return doc, nil
}
