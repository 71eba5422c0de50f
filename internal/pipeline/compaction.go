package pipeline

import "strings"

// markerReserve is kept free for the current-message marker.
const markerReserve = 100

// Compact truncates each part to maxPerPart characters and joins them with a
// blank line. When the result exceeds maxTotal, the newest (tail) content is
// kept and maxTotal-100 characters remain. Lengths count runes.
func Compact(parts []string, maxPerPart, maxTotal int) string {
	truncated := make([]string, len(parts))
	for i, p := range parts {
		truncated[i] = headRunes(p, maxPerPart)
	}
	joined := strings.Join(truncated, partSeparator)

	r := []rune(joined)
	if len(r) <= maxTotal {
		return joined
	}
	target := maxTotal - markerReserve
	if target <= 0 {
		if maxTotal <= 0 {
			return ""
		}
		return string(r[:maxTotal])
	}
	return string(r[len(r)-target:])
}

func headRunes(s string, n int) string {
	if n <= 0 {
		return s
	}
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
