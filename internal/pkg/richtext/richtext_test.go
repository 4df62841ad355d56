package richtext

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestProcessLinkifiesBareURL(t *testing.T) {
	s := NewSanitizer()

	out := s.Process("Transcript is at https://registrar.example.edu/transcripts now")
	assert.Contains(t, out, `<a href="https://registrar.example.edu/transcripts"`)
	assert.Contains(t, out, `>https://registrar.example.edu/transcripts</a>`)
}

func TestProcessLeavesExistingAnchorsAlone(t *testing.T) {
	s := NewSanitizer()

	out := s.Process(`See <a href="https://advising.example.edu/plan">the plan</a>.`)
	assert.Contains(t, out, `href="https://advising.example.edu/plan"`)
	// The anchor text must not get re-linkified into a nested anchor.
	assert.Equal(t, 1, countOccurrences(out, "<a "))
}

func TestProcessStripsUnsafeMarkup(t *testing.T) {
	s := NewSanitizer()

	out := s.Process(`<p onclick="steal()">Notes</p><script>alert(1)</script>`)
	assert.NotContains(t, out, "onclick")
	assert.NotContains(t, out, "<script>")
	assert.Contains(t, out, "Notes")
}

func TestProcessEmptyInput(t *testing.T) {
	s := NewSanitizer()
	assert.Equal(t, "", s.Process(""))
	assert.Equal(t, "", s.Process("   "))
}

func countOccurrences(s, sub string) int {
	count := 0
	for i := 0; i+len(sub) <= len(s); i++ {
		if s[i:i+len(sub)] == sub {
			count++
		}
	}
	return count
}
