// Package chunker splits document text into overlapping chunks sized for
// embedding and retrieval.
package chunker

import "strings"

// Config contains chunking parameters.
type Config struct {
	// ChunkSize is the target size of each chunk in characters.
	// Default: 1000
	ChunkSize int `yaml:"chunk_size"`

	// ChunkOverlap is the number of trailing characters carried into the
	// next chunk. Default: 200
	ChunkOverlap int `yaml:"chunk_overlap"`
}

// DefaultConfig returns the default chunker configuration.
func DefaultConfig() Config {
	return Config{
		ChunkSize:    1000,
		ChunkOverlap: 200,
	}
}

// SentenceChunker accumulates whole sentences into chunks. Sentences are
// never split; a single sentence longer than the chunk size becomes its own
// oversized chunk. Chunking is pure and deterministic.
type SentenceChunker struct {
	size    int
	overlap int
}

// NewSentenceChunker creates a sentence chunker. Non-positive values fall
// back to the defaults.
func NewSentenceChunker(cfg Config) *SentenceChunker {
	defaults := DefaultConfig()
	if cfg.ChunkSize <= 0 {
		cfg.ChunkSize = defaults.ChunkSize
	}
	if cfg.ChunkOverlap < 0 {
		cfg.ChunkOverlap = defaults.ChunkOverlap
	}
	if cfg.ChunkOverlap >= cfg.ChunkSize {
		cfg.ChunkOverlap = cfg.ChunkSize / 2
	}
	return &SentenceChunker{size: cfg.ChunkSize, overlap: cfg.ChunkOverlap}
}

// Name returns the chunker name for logging.
func (c *SentenceChunker) Name() string {
	return "sentence"
}

// Chunk splits text into chunks. Empty or whitespace-only input yields nil.
func (c *SentenceChunker) Chunk(text string) []string {
	sentences := splitSentences(text)
	if len(sentences) == 0 {
		return nil
	}

	var chunks []string
	var buf string
	for _, sentence := range sentences {
		candidate := sentence
		if buf != "" {
			candidate = buf + " " + sentence
		}
		if len(candidate) > c.size && buf != "" {
			chunks = append(chunks, buf)
			if tail := overlapTail(buf, c.overlap); tail != "" {
				buf = tail + " " + sentence
			} else {
				buf = sentence
			}
			continue
		}
		buf = candidate
	}
	if strings.TrimSpace(buf) != "" {
		chunks = append(chunks, buf)
	}
	return chunks
}

// splitSentences breaks text at sentence terminators, keeping the
// terminator with its sentence and dropping empty fragments. A trailing
// fragment without a terminator gets one appended so every sentence ends
// at a terminator.
func splitSentences(text string) []string {
	var sentences []string
	var cur strings.Builder
	for _, r := range text {
		cur.WriteRune(r)
		if r == '.' || r == '!' || r == '?' {
			if s := strings.TrimSpace(cur.String()); s != "" {
				sentences = append(sentences, s)
			}
			cur.Reset()
		}
	}
	if s := strings.TrimSpace(cur.String()); s != "" {
		sentences = append(sentences, s+".")
	}
	return sentences
}

// overlapTail returns the trailing n characters of chunk, trimmed, seeding
// continuity into the next chunk.
func overlapTail(chunk string, n int) string {
	if n <= 0 || len(chunk) <= n {
		return ""
	}
	return strings.TrimSpace(chunk[len(chunk)-n:])
}
