package types

import (
	"encoding/json"
	"strings"
)

// Document is the extracted text of one rendered page.
type Document struct {
	// Content is the cleaned page text, sections separated by blank lines.
	Content string `json:"content"`

	// SourceURL is the canonical URL the page was rendered from.
	SourceURL string `json:"source_url"`

	// Title is the page title, empty if the page had none.
	Title string `json:"title"`

	// Depth is the crawl depth at which the page was visited.
	Depth int `json:"depth"`
}

// NewDocument builds a Document, trimming surrounding whitespace from content.
func NewDocument(sourceURL, title, content string, depth int) Document {
	return Document{
		Content:   strings.TrimSpace(content),
		SourceURL: sourceURL,
		Title:     strings.TrimSpace(title),
		Depth:     depth,
	}
}

// IsEmpty reports whether the document carries no text.
func (d Document) IsEmpty() bool {
	return strings.TrimSpace(d.Content) == ""
}

// Chunk is a bounded slice of a Document's content plus its provenance.
type Chunk struct {
	Content    string `json:"content"`
	SourceURL  string `json:"source_url"`
	Title      string `json:"title"`
	Depth      int    `json:"depth"`
	ChunkIndex int    `json:"chunk_index"`
}

// NewChunk derives the index-th chunk of doc holding content.
func NewChunk(doc Document, content string, index int) Chunk {
	return Chunk{
		Content:    content,
		SourceURL:  doc.SourceURL,
		Title:      doc.Title,
		Depth:      doc.Depth,
		ChunkIndex: index,
	}
}

// Metadata returns the provenance fields stored next to a chunk's vector.
func (c Chunk) Metadata() map[string]any {
	return map[string]any{
		"source":      c.SourceURL,
		"title":       c.Title,
		"depth":       c.Depth,
		"chunk_index": c.ChunkIndex,
	}
}

// ToJSON serializes the chunk to JSON bytes.
func (c Chunk) ToJSON() ([]byte, error) {
	return json.Marshal(c)
}
