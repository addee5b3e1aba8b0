package numerator

import "strings"

// LikePattern returns a SQL LIKE pattern (escape character `\`) selecting every
// stored value that Parse could accept for a head of prefix. It is a superset:
// rows it lets through still go through CollectUsed.
//
// The pattern is meant for case-insensitive LIKE (ILIKE on postgres, LIKE on
// sqlite), which folds ASCII only. Hence:
//   - a leading % absorbs surrounding whitespace of any kind;
//   - non-ASCII runes become _, since their stored lower-case form is not folded;
//   - I and S become _, because ı (U+0131) and ſ (U+017F) upper-case to them.
//
// Upper-casing maps rune to rune, so the stored value has as many runes before the
// digits as prefix does.
func LikePattern(prefix string) string {
	var b strings.Builder
	b.Grow(len(prefix) + 2)
	b.WriteByte('%')
	for _, r := range prefix {
		switch {
		case r == '\\' || r == '%' || r == '_':
			b.WriteByte('\\')
			b.WriteRune(r)
		case r > 0x7F, r == 'I', r == 'i', r == 'S', r == 's':
			b.WriteByte('_')
		default:
			b.WriteRune(r)
		}
	}
	b.WriteByte('%')
	return b.String()
}
