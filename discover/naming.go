package discover

import (
	"path"
	"strings"
	"unicode"
)

// NameFromPath converts a slash-separated path without extension into a
// dotted unit name, camel-casing every segment.
//
//	user/get-friends -> user.getFriends
func NameFromPath(p string) string {
	segments := strings.Split(path.Clean(p), "/")
	for i, s := range segments {
		segments[i] = CamelCase(s)
	}

	return strings.Join(segments, ".")
}

// CamelCase joins the words of s into lowerCamelCase. Words are split on
// non-alphanumeric runes, lower-to-upper transitions and the end of an
// upper-case run ("HTTPServer" has the words "HTTP" and "Server").
func CamelCase(s string) string {
	var b strings.Builder

	for i, w := range words(s) {
		runes := []rune(strings.ToLower(w))
		if i > 0 {
			runes[0] = unicode.ToUpper(runes[0])
		}

		b.WriteString(string(runes))
	}

	return b.String()
}

func words(s string) []string {
	var (
		out  []string
		cur  []rune
		prev rune
	)

	flush := func() {
		if len(cur) > 0 {
			out = append(out, string(cur))
			cur = cur[:0]
		}
	}

	runes := []rune(s)
	for i, r := range runes {
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) {
			flush()
			prev = 0

			continue
		}

		if len(cur) > 0 && unicode.IsUpper(r) {
			nextLower := i+1 < len(runes) && unicode.IsLower(runes[i+1])
			if !unicode.IsUpper(prev) || nextLower {
				flush()
			}
		}

		cur = append(cur, r)
		prev = r
	}

	flush()

	return out
}
