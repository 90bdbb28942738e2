package chunker

import (
	"strings"
	"testing"
)

func TestChunkEmptyInput(t *testing.T) {
	c := NewSentenceChunker(DefaultConfig())
	for _, input := range []string{"", "   ", "\n\t"} {
		if got := c.Chunk(input); got != nil {
			t.Errorf("Chunk(%q) = %v, want nil", input, got)
		}
	}
}

func TestChunkShortTextSingleChunk(t *testing.T) {
	c := NewSentenceChunker(DefaultConfig())
	got := c.Chunk("First sentence. Second sentence! Third?")
	if len(got) != 1 {
		t.Fatalf("got %d chunks, want 1: %v", len(got), got)
	}
	if got[0] != "First sentence. Second sentence! Third?" {
		t.Errorf("chunk = %q", got[0])
	}
}

func TestChunkNoTerminatorGetsOneAppended(t *testing.T) {
	c := NewSentenceChunker(DefaultConfig())
	got := c.Chunk("plain text with no sentence terminators at all")
	if len(got) != 1 {
		t.Fatalf("got %d chunks, want 1: %v", len(got), got)
	}
	if got[0] != "plain text with no sentence terminators at all." {
		t.Errorf("chunk = %q, want trimmed input with terminal separator", got[0])
	}
}

func TestChunkTrailingFragmentGetsTerminator(t *testing.T) {
	c := NewSentenceChunker(DefaultConfig())
	got := c.Chunk("Complete sentence. dangling fragment")
	if len(got) != 1 {
		t.Fatalf("got %d chunks, want 1: %v", len(got), got)
	}
	if !strings.HasSuffix(got[0], "dangling fragment.") {
		t.Errorf("chunk = %q, want trailing fragment terminated", got[0])
	}
}

func TestChunkKeepsSentencesWhole(t *testing.T) {
	c := NewSentenceChunker(Config{ChunkSize: 50, ChunkOverlap: 0})
	text := "Alpha beta gamma delta epsilon. Zeta eta theta iota kappa. Lambda mu nu xi omicron."
	got := c.Chunk(text)
	if len(got) < 2 {
		t.Fatalf("got %d chunks, want split: %v", len(got), got)
	}
	for _, chunk := range got {
		if strings.HasPrefix(chunk, " ") || strings.HasSuffix(chunk, " ") {
			t.Errorf("chunk has untrimmed whitespace: %q", chunk)
		}
		// Every chunk boundary must land on a sentence terminator.
		if !strings.HasSuffix(chunk, ".") {
			t.Errorf("chunk does not end at a sentence boundary: %q", chunk)
		}
	}
}

func TestChunkOverlapSeedsNextChunk(t *testing.T) {
	c := NewSentenceChunker(Config{ChunkSize: 60, ChunkOverlap: 20})
	text := "One two three four five six seven. Eight nine ten eleven twelve. Thirteen fourteen fifteen sixteen."
	got := c.Chunk(text)
	if len(got) < 2 {
		t.Fatalf("got %d chunks, want at least 2: %v", len(got), got)
	}
	tail := got[0][len(got[0])-20:]
	if !strings.Contains(got[1], strings.TrimSpace(tail)) {
		t.Errorf("second chunk %q does not carry overlap %q", got[1], tail)
	}
}

func TestChunkOversizedSentenceStandsAlone(t *testing.T) {
	c := NewSentenceChunker(Config{ChunkSize: 20, ChunkOverlap: 5})
	long := strings.Repeat("word ", 20) + "end."
	got := c.Chunk("Short. " + long)
	found := false
	for _, chunk := range got {
		if strings.Contains(chunk, "word word") && len(chunk) > 20 {
			found = true
		}
	}
	if !found {
		t.Errorf("oversized sentence was split: %v", got)
	}
}

func TestChunkDeterministic(t *testing.T) {
	c := NewSentenceChunker(Config{ChunkSize: 40, ChunkOverlap: 10})
	text := "Aaa bbb ccc. Ddd eee fff. Ggg hhh iii. Jjj kkk lll."
	first := c.Chunk(text)
	second := c.Chunk(text)
	if len(first) != len(second) {
		t.Fatalf("chunk counts differ: %d vs %d", len(first), len(second))
	}
	for i := range first {
		if first[i] != second[i] {
			t.Errorf("chunk %d differs: %q vs %q", i, first[i], second[i])
		}
	}
}
