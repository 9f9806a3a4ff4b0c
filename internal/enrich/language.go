package enrich

import "unicode"

// DefaultMixedLangRatio is the margin by which one script must outnumber the
// other before a text's language is switched.
const DefaultMixedLangRatio = 1.5

// DefaultLangs is the set of language codes accepted on records.
var DefaultLangs = []string{"en", "hi", "bn", "ta", "te", "mr", "gu", "kn", "ml", "pa", "or", "ur", "as"}

type script struct {
	table *unicode.RangeTable
	lang  string
}

// Devanagari is shared by Hindi and Marathi; it resolves to "hi".
var scripts = []script{
	{unicode.Devanagari, "hi"},
	{unicode.Bengali, "bn"},
	{unicode.Tamil, "ta"},
	{unicode.Telugu, "te"},
	{unicode.Gujarati, "gu"},
	{unicode.Kannada, "kn"},
	{unicode.Malayalam, "ml"},
	{unicode.Gurmukhi, "pa"},
	{unicode.Oriya, "or"},
	{unicode.Arabic, "ur"},
}

// DetectScriptLanguage counts Latin letters against the most frequent
// regional script in text. The side that outnumbers the other by more than
// ratio decides the language; otherwise previous is returned unchanged.
func DetectScriptLanguage(text, previous string, ratio float64) string {
	if ratio <= 0 {
		ratio = DefaultMixedLangRatio
	}
	latin := 0
	counts := make([]int, len(scripts))
	for _, r := range text {
		if !unicode.IsLetter(r) && !unicode.Is(unicode.Mn, r) && !unicode.Is(unicode.Mc, r) {
			continue
		}
		if unicode.Is(unicode.Latin, r) {
			latin++
			continue
		}
		for i, s := range scripts {
			if unicode.Is(s.table, r) {
				counts[i]++
				break
			}
		}
	}

	best, other := -1, 0
	for i, c := range counts {
		if c > other {
			best, other = i, c
		}
	}

	switch {
	case latin == 0 && other == 0:
		return previous
	case float64(latin) > ratio*float64(other):
		return "en"
	case best >= 0 && float64(other) > ratio*float64(latin):
		return scripts[best].lang
	default:
		return previous
	}
}
