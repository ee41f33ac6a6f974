package chunk

import (
	"strings"
	"testing"
	"unicode/utf8"
)

// TestSplit_ShortText verifies text at or under the window size stays whole.
func TestSplit_ShortText(t *testing.T) {
	chunks, err := Split("a short note about gardening", 200, 50)
	if err != nil {
		t.Fatalf("Split failed: %v", err)
	}
	if len(chunks) != 1 {
		t.Fatalf("Expected 1 chunk, got %d", len(chunks))
	}
	if chunks[0] != "a short note about gardening" {
		t.Errorf("Chunk content changed: %q", chunks[0])
	}
}

// TestSplit_Windows verifies window count and overlap for long text.
func TestSplit_Windows(t *testing.T) {
	// 2400 chars of ten-char words. Size 1000, overlap 200 => step 800,
	// windows start at 0, 800, 1600 => 3 chunks.
	text := strings.TrimSpace(strings.Repeat("abcdefghi ", 240))

	chunks, err := Split(text, 1000, 200)
	if err != nil {
		t.Fatalf("Split failed: %v", err)
	}
	if len(chunks) != 3 {
		t.Fatalf("Expected 3 chunks, got %d", len(chunks))
	}

	// Interior chunks fill the window (minus trimmed edge whitespace).
	if len(chunks[0]) < 990 || len(chunks[0]) > 1000 {
		t.Errorf("Chunk 0 length out of range: %d", len(chunks[0]))
	}

	// Consecutive chunks share the overlap region.
	tail := chunks[0][len(chunks[0])-100:]
	if !strings.Contains(chunks[1], tail) {
		t.Error("Chunk 1 does not contain the tail of chunk 0")
	}
}

// TestSplit_Deterministic verifies identical input yields identical output.
func TestSplit_Deterministic(t *testing.T) {
	text := strings.Repeat("some   note  text\n\nwith messy\t whitespace ", 100)

	first, err := Split(text, 200, 50)
	if err != nil {
		t.Fatalf("Split failed: %v", err)
	}
	second, err := Split(text, 200, 50)
	if err != nil {
		t.Fatalf("Split failed: %v", err)
	}

	if len(first) != len(second) {
		t.Fatalf("Chunk counts differ: %d vs %d", len(first), len(second))
	}
	for i := range first {
		if first[i] != second[i] {
			t.Errorf("Chunk %d differs between runs", i)
		}
	}
}

// TestSplit_FullCoverage verifies no text is lost between windows: the
// non-overlapping prefixes of each chunk plus the final chunk reassemble
// the cleaned input exactly.
func TestSplit_FullCoverage(t *testing.T) {
	// Whitespace-free input so edge trimming cannot shift boundaries.
	text := strings.Repeat("abcde", 500) // 2500 chars

	size, overlap := 200, 50
	chunks, err := Split(text, size, overlap)
	if err != nil {
		t.Fatalf("Split failed: %v", err)
	}

	step := size - overlap
	var rebuilt strings.Builder
	for i, c := range chunks {
		if i == len(chunks)-1 {
			rebuilt.WriteString(c)
			continue
		}
		if len(c) < step {
			t.Fatalf("Chunk %d shorter than step: %d < %d", i, len(c), step)
		}
		rebuilt.WriteString(c[:step])
	}

	if rebuilt.String() != Clean(text) {
		t.Error("Reassembled chunks do not match the cleaned input")
	}
}

// TestSplit_InvalidConfig verifies rejected size/overlap combinations.
func TestSplit_InvalidConfig(t *testing.T) {
	cases := []struct {
		name    string
		size    int
		overlap int
	}{
		{"zero size", 0, 0},
		{"negative size", -1, 0},
		{"negative overlap", 100, -1},
		{"overlap equals size", 100, 100},
		{"overlap exceeds size", 100, 150},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Split("some text", tc.size, tc.overlap)
			if err == nil {
				t.Fatalf("Expected error for size=%d overlap=%d", tc.size, tc.overlap)
			}
		})
	}
}

// TestSplit_EmptyText verifies whitespace-only input yields no chunks.
func TestSplit_EmptyText(t *testing.T) {
	chunks, err := Split("   \n\t  ", 200, 50)
	if err != nil {
		t.Fatalf("Split failed: %v", err)
	}
	if len(chunks) != 0 {
		t.Errorf("Expected no chunks, got %d", len(chunks))
	}
}

// TestSplit_Multibyte verifies rune-based slicing never splits characters.
func TestSplit_Multibyte(t *testing.T) {
	text := strings.Repeat("日本語のテキスト ", 100)

	chunks, err := Split(text, 50, 10)
	if err != nil {
		t.Fatalf("Split failed: %v", err)
	}
	for i, c := range chunks {
		if !utf8.ValidString(c) {
			t.Errorf("Chunk %d is not valid UTF-8", i)
		}
	}
}

// TestClean verifies whitespace normalization.
func TestClean(t *testing.T) {
	got := Clean("  hello \n\n world\t again  ")
	if got != "hello world again" {
		t.Errorf("Expected 'hello world again', got %q", got)
	}
}
