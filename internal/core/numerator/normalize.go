package numerator

import (
	"strings"
	"unicode/utf8"
)

const (
	// DefaultSeasonCode is embedded between the client and species parts of a group prefix.
	DefaultSeasonCode = "2526"

	prefixPartLen = 3
	fillRune      = 'X'
)

// ClientPrefix derives the three-letter client part of a group prefix:
//
//	one word     -> first three letters       ("copefrut"        -> "COP")
//	two words    -> 1 letter + 2 letters      ("san andres"      -> "SAN")
//	three+ words -> initials of first three   ("fruit andes sur" -> "FAS")
//
// Short results are right-padded with X; blank input yields XXX.
func ClientPrefix(client string) string {
	words := strings.Fields(strings.ToUpper(client))
	switch len(words) {
	case 0:
		return strings.Repeat(string(fillRune), prefixPartLen)
	case 1:
		return padPart(firstRunes(words[0], 3))
	case 2:
		return padPart(firstRunes(words[0], 1) + firstRunes(words[1], 2))
	default:
		var b strings.Builder
		for _, w := range words[:prefixPartLen] {
			b.WriteString(firstRunes(w, 1))
		}
		return padPart(b.String())
	}
}

// SpeciesPrefix returns the first three letters of the species, upper-cased and X-padded.
func SpeciesPrefix(species string) string {
	s := strings.ToUpper(strings.TrimSpace(species))
	if s == "" {
		return strings.Repeat(string(fillRune), prefixPartLen)
	}
	return padPart(firstRunes(s, 3))
}

// GroupPrefix builds the composite group key: client part + season + species part.
// Casing and surrounding whitespace of the inputs do not affect the result.
func GroupPrefix(client, species, season string) string {
	if season == "" {
		season = DefaultSeasonCode
	}
	return ClientPrefix(client) + strings.ToUpper(season) + SpeciesPrefix(species)
}

func firstRunes(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	i := 0
	for pos := range s {
		if i == n {
			return s[:pos]
		}
		i++
	}
	return s
}

func padPart(s string) string {
	if c := utf8.RuneCountInString(s); c < prefixPartLen {
		return s + strings.Repeat(string(fillRune), prefixPartLen-c)
	}
	return s
}
