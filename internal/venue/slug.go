package venue

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Slugify lowercases s, strips diacritics, turns every run of
// non-alphanumeric characters into one hyphen and trims hyphens at both ends.
//
//	"Lux Frágil"  -> "lux-fragil"
//	"B.Leza"      -> "b-leza"
func Slugify(s string) string {
	s = stripDiacritics(strings.ToLower(strings.TrimSpace(s)))

	var b strings.Builder
	b.Grow(len(s))
	pendingHyphen := false
	for _, r := range s {
		if isSlugRune(r) {
			if pendingHyphen && b.Len() > 0 {
				b.WriteByte('-')
			}
			pendingHyphen = false
			b.WriteRune(r)
			continue
		}
		pendingHyphen = true
	}
	return b.String()
}

func isSlugRune(r rune) bool {
	return (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9')
}

func stripDiacritics(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		return s
	}
	return out
}

// NormalizeHandle lowercases a social handle and strips a leading "@".
func NormalizeHandle(h string) string {
	h = strings.ToLower(strings.TrimSpace(h))
	return strings.TrimLeft(h, "@")
}

// stripDots is the second handle variant: "rumu.club" -> "rumuclub".
func stripDots(h string) string {
	return strings.ReplaceAll(h, ".", "")
}

// FallbackKey derives a venue key when nothing in the registry matches:
// the whitespace-collapsed lowercase name, "name|address" when both are
// present, the address alone, or "" when neither is.
func FallbackKey(name, address string) string {
	n := collapse(name)
	a := collapse(address)
	switch {
	case n != "" && a != "":
		return n + "|" + a
	case n != "":
		return n
	default:
		return a
	}
}

func collapse(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}
