package htmlutils

import (
	"strings"
	"testing"
)

func TestStripHTMLTags(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{
			name:     "no tags",
			input:    "  Hello World ",
			expected: "Hello World",
		},
		{
			name:     "paragraph and link",
			input:    `<p>New <a href="https://x.test">model</a> released</p>`,
			expected: "New model released",
		},
		{
			name:     "entities only",
			input:    "Tom &amp; Jerry",
			expected: "Tom & Jerry",
		},
		{
			name:     "entities inside tags",
			input:    "<b>a &lt; b</b>",
			expected: "a < b",
		},
		{
			name:     "self closing",
			input:    "line<br/>break",
			expected: "linebreak",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := StripHTMLTags(tt.input)
			if got != tt.expected {
				t.Errorf("StripHTMLTags() = %q, want %q", got, tt.expected)
			}
		})
	}
}

func TestCleanText(t *testing.T) {
	got := CleanText("<div>\n  Agents\t\tthat <i>plan</i>\n</div>")
	if got != "Agents that plan" {
		t.Errorf("CleanText() = %q", got)
	}
}

func TestTruncateWords(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		max      int
		expected string
	}{
		{"under limit", "one two", 3, "one two"},
		{"at limit", "one two three", 3, "one two three"},
		{"over limit", "one two three four", 2, "one two…"},
		{"zero keeps all", "one  two", 0, "one two"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := TruncateWords(tt.input, tt.max); got != tt.expected {
				t.Errorf("TruncateWords() = %q, want %q", got, tt.expected)
			}
		})
	}
}

func TestWrap(t *testing.T) {
	got := Wrap("aaa bbb ccc ddd", 9, "  ")
	want := "  aaa bbb\n  ccc ddd"

	if got != want {
		t.Errorf("Wrap() = %q, want %q", got, want)
	}

	for _, line := range strings.Split(Wrap(strings.Repeat("word ", 40), 20, "  "), "\n") {
		if len(line) > 20 {
			t.Errorf("line exceeds width: %q", line)
		}

		if !strings.HasPrefix(line, "  ") {
			t.Errorf("line missing indent: %q", line)
		}
	}
}

func TestWrap_BreaksLongWords(t *testing.T) {
	got := Wrap("abcdefghij", 6, "  ")
	want := "  abcd\n  efgh\n  ij"

	if got != want {
		t.Errorf("Wrap() = %q, want %q", got, want)
	}
}

func TestWrap_Empty(t *testing.T) {
	if got := Wrap("   ", 10, "  "); got != "" {
		t.Errorf("Wrap() = %q, want empty", got)
	}
}

func TestSplitMessage(t *testing.T) {
	t.Run("short text stays whole", func(t *testing.T) {
		parts := SplitMessage("hello", 100)
		if len(parts) != 1 || parts[0] != "hello" {
			t.Errorf("SplitMessage() = %q", parts)
		}
	})

	t.Run("splits before headers", func(t *testing.T) {
		text := "# Title\n" + strings.Repeat("x", 20) + "\n## Next\nbody"
		parts := SplitMessage(text, 35)

		if len(parts) != 2 {
			t.Fatalf("expected 2 parts, got %d: %q", len(parts), parts)
		}

		if !strings.HasPrefix(parts[1], "## Next") {
			t.Errorf("second part should start with header, got %q", parts[1])
		}
	})

	t.Run("parts respect limit", func(t *testing.T) {
		text := strings.Repeat("word ", 500)
		for _, p := range SplitMessage(text, 100) {
			if utf16Len(p) > 100 {
				t.Errorf("part too long: %d", utf16Len(p))
			}
		}
	})

	t.Run("emoji counted as surrogate pairs", func(t *testing.T) {
		text := strings.Repeat("😀", 10)
		parts := SplitMessage(text, 10)

		if len(parts) != 2 {
			t.Errorf("expected 2 parts, got %d", len(parts))
		}
	})

	t.Run("empty", func(t *testing.T) {
		if parts := SplitMessage("", 10); parts != nil {
			t.Errorf("expected nil, got %q", parts)
		}
	})
}
