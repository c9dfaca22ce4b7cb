package parser

import (
	"html"
	"math"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/shopspring/decimal"
)

const (
	// MaxTextLength bounds HTML-bearing fields, in characters.
	MaxTextLength   = 10000
	truncatedMarker = "…[truncated]"
)

var paragraphBreaks = []string{"&lt;/p&gt;", "\n\n"}

// sanitizeHTML escapes markup and bounds the result to maxLen characters,
// cutting at the last paragraph boundary in the upper half of the budget when
// there is one, otherwise hard-cutting and appending a marker.
func sanitizeHTML(s string, maxLen int) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}
	escaped := html.EscapeString(s)
	if maxLen <= 0 || utf8.RuneCountInString(escaped) <= maxLen {
		return escaped
	}

	markerLen := utf8.RuneCountInString(truncatedMarker)
	budget := maxLen - markerLen
	if budget <= 0 {
		return string([]rune(escaped)[:maxLen])
	}
	head := string([]rune(escaped)[:budget])

	// Paragraph boundary
	cut := -1
	for _, br := range paragraphBreaks {
		if idx := strings.LastIndex(head, br); idx >= 0 {
			end := idx + len(br)
			if end > cut {
				cut = end
			}
		}
	}
	if cut > 0 && utf8.RuneCountInString(head[:cut]) >= maxLen/2 {
		return strings.TrimSpace(head[:cut])
	}

	// Hard cut, never inside an entity like &amp;
	if amp := strings.LastIndex(head, "&"); amp >= 0 && !strings.Contains(head[amp:], ";") {
		head = head[:amp]
	}
	return head + truncatedMarker
}

// cleanText trims and collapses an inline text value.
func cleanText(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// parseFloat safe-parses a number; invalid or empty input yields def.
func parseFloat(s string, def float64) float64 {
	s = strings.TrimSpace(s)
	if s == "" {
		return def
	}
	s = strings.ReplaceAll(s, "\u00a0", "")
	s = strings.ReplaceAll(s, " ", "")
	// Whichever separator comes last is the decimal one: "1.234,56", "1,234.56", "19,99".
	comma, dot := strings.LastIndex(s, ","), strings.LastIndex(s, ".")
	switch {
	case comma >= 0 && comma > dot:
		s = strings.ReplaceAll(s, ".", "")
		s = strings.ReplaceAll(s, ",", ".")
	case comma >= 0:
		s = strings.ReplaceAll(s, ",", "")
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return def
	}
	return v
}

// parseInt safe-parses an integer, accepting "3.0".
func parseInt(s string, def int) int {
	v := parseFloat(s, math.NaN())
	switch {
	case math.IsNaN(v):
		return def
	case v >= math.MaxInt:
		return math.MaxInt
	case v <= math.MinInt:
		return math.MinInt
	}
	return int(v)
}

// parseBool safe-parses supplier flags.
func parseBool(s string, def bool) bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "1", "true", "yes", "y", "tak", "t":
		return true
	case "0", "false", "no", "n", "nie", "f":
		return false
	default:
		return def
	}
}

// netFromGross derives the net price as gross / (1 + vat/100), rounded to
// two decimals.
func netFromGross(gross, vat float64) float64 {
	g := decimal.NewFromFloat(gross)
	divisor := decimal.NewFromInt(1).Add(decimal.NewFromFloat(vat).Div(decimal.NewFromInt(100)))
	if divisor.IsZero() {
		return round2(gross)
	}
	return g.Div(divisor).Round(2).InexactFloat64()
}

func round2(v float64) float64 {
	return decimal.NewFromFloat(v).Round(2).InexactFloat64()
}
