// Package chunker splits document text into bounded, overlapping chunks.
package chunker

import (
	"strings"
	"unicode/utf8"

	"github.com/IshaanNene/webrag/internal/config"
	"github.com/IshaanNene/webrag/internal/types"
)

// DefaultSeparators are tried in order: paragraphs, lines, words, runes.
var DefaultSeparators = []string{"\n\n", "\n", " ", ""}

// Chunker splits text recursively on progressively finer separators and
// merges the pieces back into chunks of at most ChunkSize runes, carrying up
// to ChunkOverlap runes of trailing context into the next chunk.
type Chunker struct {
	size       int
	overlap    int
	separators []string
}

// New creates a Chunker. cfg must satisfy 0 <= overlap < size.
func New(cfg config.ChunkConfig) (*Chunker, error) {
	if err := config.ValidateChunk(cfg); err != nil {
		return nil, err
	}
	return &Chunker{
		size:       cfg.ChunkSize,
		overlap:    cfg.ChunkOverlap,
		separators: DefaultSeparators,
	}, nil
}

// Split divides text into chunks. Text that already fits is returned as a
// single chunk, so splitting a chunk again yields the same chunk.
func (c *Chunker) Split(text string) []string {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return nil
	}
	if runeLen(trimmed) <= c.size {
		return []string{trimmed}
	}
	return c.split(text, c.separators)
}

// Chunk splits every document and tags each piece with its provenance.
func (c *Chunker) Chunk(docs []types.Document) []types.Chunk {
	var chunks []types.Chunk
	for _, doc := range docs {
		for i, piece := range c.Split(doc.Content) {
			chunks = append(chunks, types.NewChunk(doc, piece, i))
		}
	}
	return chunks
}

func (c *Chunker) split(text string, separators []string) []string {
	separator := separators[len(separators)-1]
	var rest []string
	for i, s := range separators {
		if s == "" {
			separator = s
			break
		}
		if strings.Contains(text, s) {
			separator = s
			rest = separators[i+1:]
			break
		}
	}

	var (
		final []string
		good  []string
	)
	for _, piece := range strings.Split(text, separator) {
		if piece == "" {
			continue
		}
		if runeLen(piece) < c.size {
			good = append(good, piece)
			continue
		}

		if len(good) > 0 {
			final = append(final, c.merge(good, separator)...)
			good = nil
		}
		if len(rest) == 0 {
			final = append(final, piece)
		} else {
			final = append(final, c.split(piece, rest)...)
		}
	}
	if len(good) > 0 {
		final = append(final, c.merge(good, separator)...)
	}

	return final
}

// merge joins pieces into chunks no longer than size. After each emitted
// chunk, leading pieces are dropped until at most overlap runes remain; those
// seed the next chunk.
func (c *Chunker) merge(pieces []string, separator string) []string {
	sepLen := runeLen(separator)

	var (
		chunks  []string
		current []string
		total   int
	)

	joinedLen := func(n int) int {
		if len(current) > 0 {
			return total + n + sepLen
		}
		return total + n
	}

	for _, piece := range pieces {
		n := runeLen(piece)

		if joinedLen(n) > c.size && len(current) > 0 {
			if chunk := strings.TrimSpace(strings.Join(current, separator)); chunk != "" {
				chunks = append(chunks, chunk)
			}
			for total > c.overlap || (joinedLen(n) > c.size && total > 0) {
				drop := runeLen(current[0])
				if len(current) > 1 {
					drop += sepLen
				}
				total -= drop
				current = current[1:]
			}
		}

		current = append(current, piece)
		if len(current) > 1 {
			total += n + sepLen
		} else {
			total += n
		}
	}

	if chunk := strings.TrimSpace(strings.Join(current, separator)); chunk != "" {
		chunks = append(chunks, chunk)
	}

	return chunks
}

func runeLen(s string) int {
	return utf8.RuneCountInString(s)
}
