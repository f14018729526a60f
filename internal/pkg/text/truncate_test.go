package text

import (
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
)

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", Truncate("short", 10))
	assert.Equal(t, "abc...", Truncate("abcdef", 3))
	assert.Equal(t, "abcdef", Truncate("abcdef", 0))

	got := Truncate("止损触发", 4)
	assert.True(t, utf8.ValidString(got))
	assert.Equal(t, "止...", got)
}
