package enrich

import "time"

// Metadata is what the enricher attaches to every question of a document.
type Metadata struct {
	Year     *int
	Verified bool
}

// Enricher bundles the allowlist and language settings used at ingestion.
type Enricher struct {
	Allowlist *Allowlist
	Ratio     float64
}

// New returns an Enricher; a nil allowlist uses DefaultAuthorities.
func New(allowlist *Allowlist, ratio float64) *Enricher {
	if allowlist == nil {
		allowlist = NewAllowlist(nil)
	}
	if ratio <= 0 {
		ratio = DefaultMixedLangRatio
	}
	return &Enricher{Allowlist: allowlist, Ratio: ratio}
}

// Document infers year and provenance for a whole extracted document.
func (e *Enricher) Document(text, sourceLink string, fallbackYear *int, now time.Time) Metadata {
	return Metadata{
		Year:     InferYear(text, fallbackYear, now),
		Verified: e.Allowlist.Verified(sourceLink),
	}
}

// Lang picks the language of one question, keeping primary when the text is
// not clearly dominated by a single script.
func (e *Enricher) Lang(question, primary string) string {
	return DetectScriptLanguage(question, primary, e.Ratio)
}
