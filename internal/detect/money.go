package detect

import (
	"fmt"
	"math"
	"strings"
)

// round2 rounds to 2 decimal places, matching the precision used across
// all leakage figures.
func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// formatGBP renders an amount as e.g. 12,345.67 for detail messages.
func formatGBP(v float64) string {
	neg := v < 0
	s := fmt.Sprintf("%.2f", math.Abs(v))
	dot := strings.IndexByte(s, '.')
	intPart, frac := s[:dot], s[dot:]

	var b strings.Builder
	if neg {
		b.WriteByte('-')
	}
	for i, c := range intPart {
		if i > 0 && (len(intPart)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(c)
	}
	b.WriteString(frac)
	return b.String()
}
