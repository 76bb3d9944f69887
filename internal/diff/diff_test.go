package diff

import (
	"strings"
	"testing"
)

func TestLinesReplacementInMiddle(t *testing.T) {
	t.Parallel()

	got := Lines("a\nb\nc", "a\nx\nc")

	expected := []Segment{
		{Op: Unchanged, Text: "a"},
		{Op: Removed, Text: "b"},
		{Op: Added, Text: "x"},
		{Op: Unchanged, Text: "c"},
	}

	assertSegments(t, expected, got)
}

func TestLinesAppendOnly(t *testing.T) {
	t.Parallel()

	got := Lines("a", "a\nb\nc")

	expected := []Segment{
		{Op: Unchanged, Text: "a"},
		{Op: Added, Text: "b"},
		{Op: Added, Text: "c"},
	}

	assertSegments(t, expected, got)
}

func TestLinesRemoveTail(t *testing.T) {
	t.Parallel()

	got := Lines("a\nb\nc", "a")

	expected := []Segment{
		{Op: Unchanged, Text: "a"},
		{Op: Removed, Text: "b"},
		{Op: Removed, Text: "c"},
	}

	assertSegments(t, expected, got)
}

func TestLinesEmptyInputs(t *testing.T) {
	t.Parallel()

	if got := Lines("", ""); len(got) != 0 {
		t.Fatalf("expected no segments for empty inputs, got %+v", got)
	}

	got := Lines("", "a\nb")
	expected := []Segment{
		{Op: Added, Text: "a"},
		{Op: Added, Text: "b"},
	}
	assertSegments(t, expected, got)

	got = Lines("a\nb", "")
	expected = []Segment{
		{Op: Removed, Text: "a"},
		{Op: Removed, Text: "b"},
	}
	assertSegments(t, expected, got)
}

func TestLinesIdenticalTexts(t *testing.T) {
	t.Parallel()

	got := Lines("a\nb", "a\nb")
	for _, seg := range got {
		if seg.Op != Unchanged {
			t.Fatalf("expected only unchanged segments, got %+v", got)
		}
	}
}

// Applying the diff to the old text must reconstruct the new text for inputs
// without duplicate lines.
func TestLinesRoundTrip(t *testing.T) {
	t.Parallel()

	pairs := [][2]string{
		{"a\nb\nc", "a\nx\nc"},
		{"one\ntwo\nthree\nfour", "one\nthree\nfour\nfive"},
		{"", "fresh\nstart"},
		{"only\nold", ""},
		{"keep\ndrop\nkeep2", "keep\nkeep2\nnew"},
	}

	for _, pair := range pairs {
		oldText, newText := pair[0], pair[1]

		var rebuilt []string
		for _, seg := range Lines(oldText, newText) {
			switch seg.Op {
			case Unchanged, Added:
				rebuilt = append(rebuilt, seg.Text)
			case Removed:
				// dropped
			}
		}

		got := strings.Join(rebuilt, "\n")
		if got != newText {
			t.Fatalf("round trip failed for %q -> %q: rebuilt %q", oldText, newText, got)
		}
	}
}

func assertSegments(t *testing.T, expected, got []Segment) {
	t.Helper()

	if len(got) != len(expected) {
		t.Fatalf("expected %d segments, got %d: %+v", len(expected), len(got), got)
	}

	for i := range expected {
		if got[i] != expected[i] {
			t.Fatalf("segment %d: expected %+v, got %+v", i, expected[i], got[i])
		}
	}
}
