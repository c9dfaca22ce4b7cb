package parser

import (
	"math"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
)

func TestSanitizeHTML(t *testing.T) {
	t.Run("escapes markup", func(t *testing.T) {
		assert.Equal(t, "&lt;b&gt;bold&lt;/b&gt; &amp; more", sanitizeHTML(" <b>bold</b> & more ", 100))
	})

	t.Run("short text untouched", func(t *testing.T) {
		assert.Equal(t, "plain", sanitizeHTML("plain", 10))
		assert.Equal(t, "", sanitizeHTML("   ", 10))
	})

	t.Run("cuts at paragraph in upper half", func(t *testing.T) {
		in := strings.Repeat("a", 7000) + "\n\n" + strings.Repeat("b", 5000)
		out := sanitizeHTML(in, MaxTextLength)
		assert.Equal(t, strings.Repeat("a", 7000), out)
	})

	t.Run("hard cut when paragraph is too early", func(t *testing.T) {
		in := strings.Repeat("a", 100) + "\n\n" + strings.Repeat("b", 15000)
		out := sanitizeHTML(in, MaxTextLength)
		assert.True(t, strings.HasSuffix(out, truncatedMarker))
		assert.Equal(t, MaxTextLength, utf8.RuneCountInString(out))
	})

	t.Run("hard cut never splits an entity", func(t *testing.T) {
		out := sanitizeHTML("abcdef&ghijklmnopq", 20)
		assert.Equal(t, "abcdef"+truncatedMarker, out)
	})

	t.Run("escaped paragraph close tag is a boundary", func(t *testing.T) {
		in := "<p>" + strings.Repeat("x", 80) + "</p><p>" + strings.Repeat("y", 80) + "</p>"
		out := sanitizeHTML(in, 120)
		assert.True(t, strings.HasSuffix(out, "&lt;/p&gt;"))
		assert.NotContains(t, out, "y")
	})
}

func TestParseFloat(t *testing.T) {
	tests := []struct {
		in   string
		def  float64
		want float64
	}{
		{"19.99", 0, 19.99},
		{"19,99", 0, 19.99},
		{" 1 234,56 ", 0, 1234.56},
		{"1.234,56", 0, 1234.56},
		{"1,234.56", 0, 1234.56},
		{"1 000", 0, 1000},
		{"", 7, 7},
		{"abc", -1, -1},
		{"NaN", 3, 3},
		{"Inf", 3, 3},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.InDelta(t, tt.want, parseFloat(tt.in, tt.def), 1e-9)
		})
	}
}

func TestParseIntAndBool(t *testing.T) {
	assert.Equal(t, 3, parseInt("3", 0))
	assert.Equal(t, 3, parseInt("3.0", 0))
	assert.Equal(t, 9, parseInt("x", 9))
	assert.Equal(t, math.MaxInt, parseInt("1e300", 0))
	assert.Equal(t, math.MinInt, parseInt("-1e300", 0))

	assert.True(t, parseBool("tak", false))
	assert.True(t, parseBool(" TRUE ", false))
	assert.False(t, parseBool("nie", true))
	assert.False(t, parseBool("0", true))
	assert.True(t, parseBool("maybe", true))
}

func TestNetFromGross(t *testing.T) {
	assert.Equal(t, 16.25, netFromGross(19.99, 23))
	assert.Equal(t, 100.0, netFromGross(108, 8))
	assert.Equal(t, 10.0, netFromGross(10, 0))
	assert.Equal(t, 5.0, netFromGross(5, -100))
}
