package core

import (
	"net/url"
	"regexp"
	"strings"
)

var httpURLPattern = regexp.MustCompile(`^https?://`)

const upperHex = "0123456789ABCDEF"

// EncodeURI percent-encodes s the way a browser's encodeURI does, leaving
// URI-reserved punctuation alone. Existing %XX escapes are preserved so the
// function is idempotent.
func EncodeURI(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c == '%' && i+2 < len(s) && isHex(s[i+1]) && isHex(s[i+2]):
			b.WriteByte(c)
		case shouldKeep(c):
			b.WriteByte(c)
		default:
			b.WriteByte('%')
			b.WriteByte(upperHex[c>>4])
			b.WriteByte(upperHex[c&0x0f])
		}
	}
	return b.String()
}

func shouldKeep(c byte) bool {
	switch {
	case 'a' <= c && c <= 'z', 'A' <= c && c <= 'Z', '0' <= c && c <= '9':
		return true
	}
	return strings.IndexByte(";,/?:@&=+$-_.!~*'()#", c) >= 0
}

func isHex(c byte) bool {
	return ('0' <= c && c <= '9') || ('a' <= c && c <= 'f') || ('A' <= c && c <= 'F')
}

// FixupURL accepts a fully-qualified http(s) URL or an absolute path (other
// than "/") resolved against origin, and returns the encoded result.
func FixupURL(cfg Config, origin string, raw any) (string, error) {
	s, ok := raw.(string)
	if !ok {
		return "", invalidf("urls must be strings: (%v)", raw)
	}
	var full string
	switch {
	case httpURLPattern.MatchString(s):
		full = s
	case strings.HasPrefix(s, "/") && s != "/":
		full = origin + s
	default:
		return "", invalidf("relative urls not allowed: (%s)", s)
	}
	encoded := EncodeURI(full)
	if u, err := url.Parse(encoded); err != nil || u.Host == "" {
		return "", invalidf("invalid url: (%s)", s)
	}
	if len(encoded) >= cfg.URLMaxLength {
		return "", invalidf("urls must be < %d characters", cfg.URLMaxLength)
	}
	return encoded, nil
}

// FixupAbsolutePath resolves an absolute path such as "/i/logo.png" against
// origin. A lone "/" is rejected unless allowRoot is set.
func FixupAbsolutePath(cfg Config, origin string, raw any, allowRoot bool) (string, error) {
	s, ok := raw.(string)
	if !ok {
		return "", invalidf("urls must be strings: (%v)", raw)
	}
	if !isAbsolutePath(s) {
		return "", invalidf("must be an absolute path: (%s)", s)
	}
	if s == "/" && !allowRoot {
		return "", invalidf("path must not be empty: (%s)", s)
	}
	path := EncodeURI(s)
	full := origin + path
	if len(full) >= cfg.URLMaxLength {
		return "", invalidf("urls must be < %d characters", cfg.URLMaxLength)
	}
	if len(path) >= cfg.PathMaxLength {
		return "", invalidf("path portion of a url must be < %d characters", cfg.PathMaxLength)
	}
	return full, nil
}

// isAbsolutePath reports whether s is a same-origin path: a leading "/"
// that is not followed by another "/" or "\" (both make the browser treat
// the rest as a host).
func isAbsolutePath(s string) bool {
	if !strings.HasPrefix(s, "/") {
		return false
	}
	if len(s) > 1 && (s[1] == '/' || s[1] == '\\') {
		return false
	}
	return true
}

func isHTTPSOrigin(origin string) bool {
	return strings.HasPrefix(strings.ToLower(origin), "https://")
}
