package core

import (
	"regexp"
	"strings"
)

var colorPattern = regexp.MustCompile(`^#?([0-9a-fA-F]{3}|[0-9a-fA-F]{6})$`)

// NormalizeColor turns "#abc", "abc", "#aabbcc" or "aabbcc" into a
// six-digit hex string without the leading "#". Case is preserved.
func NormalizeColor(raw any) (string, error) {
	s, ok := raw.(string)
	if !ok || !colorPattern.MatchString(s) {
		return "", invalidf("invalid backgroundColor: %v", raw)
	}
	s = strings.TrimPrefix(s, "#")
	if len(s) == 6 {
		return s, nil
	}
	var b strings.Builder
	b.Grow(6)
	for i := 0; i < len(s); i++ {
		b.WriteByte(s[i])
		b.WriteByte(s[i])
	}
	return b.String(), nil
}
