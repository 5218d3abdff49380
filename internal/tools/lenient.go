package tools

import (
	"strings"

	json5 "github.com/yosuke-furukawa/json5/encoding/json5"
)

// DecodeLenient unmarshals JSON5-ish model output into v. Single-quoted
// strings are rewritten to double quotes first because the json5 decoder
// only accepts the double-quoted form.
func DecodeLenient(data []byte, v any) error {
	return json5.Unmarshal([]byte(requote(string(data))), v)
}

// requote converts single-quoted string literals to double-quoted ones.
// Double-quoted strings and comments are copied untouched.
func requote(s string) string {
	if !strings.ContainsRune(s, '\'') {
		return s
	}

	var b strings.Builder
	b.Grow(len(s) + 8)
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c == '"':
			end := skipString(s, i, '"')
			b.WriteString(s[i:end])
			i = end - 1
		case c == '/' && i+1 < len(s) && s[i+1] == '/':
			end := strings.IndexByte(s[i:], '\n')
			if end < 0 {
				b.WriteString(s[i:])
				return b.String()
			}
			b.WriteString(s[i : i+end])
			i += end - 1
		case c == '/' && i+1 < len(s) && s[i+1] == '*':
			end := strings.Index(s[i+2:], "*/")
			if end < 0 {
				b.WriteString(s[i:])
				return b.String()
			}
			b.WriteString(s[i : i+2+end+2])
			i += 2 + end + 1
		case c == '\'':
			i = writeSingle(&b, s, i)
		default:
			b.WriteByte(c)
		}
	}
	return b.String()
}

// skipString returns the index just past the string literal opened at s[start].
func skipString(s string, start int, quote byte) int {
	for i := start + 1; i < len(s); i++ {
		switch s[i] {
		case '\\':
			i++
		case quote:
			return i + 1
		}
	}
	return len(s)
}

// writeSingle writes the single-quoted literal opened at s[start] as a
// double-quoted one and returns the index of its closing quote.
func writeSingle(b *strings.Builder, s string, start int) int {
	b.WriteByte('"')
	for i := start + 1; i < len(s); i++ {
		c := s[i]
		switch c {
		case '\\':
			if i+1 < len(s) && s[i+1] == '\'' {
				b.WriteByte('\'')
			} else if i+1 < len(s) {
				b.WriteByte('\\')
				b.WriteByte(s[i+1])
			}
			i++
		case '"':
			b.WriteString(`\"`)
		case '\'':
			b.WriteByte('"')
			return i
		default:
			b.WriteByte(c)
		}
	}
	// Unterminated; let the decoder report it.
	return len(s)
}
