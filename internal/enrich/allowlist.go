package enrich

import (
	"net/url"
	"strings"
)

// Authority is an official exam body identified by its web domain. A domain
// starting with "." is a suffix rule that matches any host under it.
type Authority struct {
	Domain string
	Exam   string
}

// DefaultAuthorities is the curated list of official exam-authority domains.
var DefaultAuthorities = []Authority{
	{Domain: "upsc.gov.in", Exam: "UPSC"},
	{Domain: "upsconline.nic.in", Exam: "UPSC"},
	{Domain: "ssc.nic.in", Exam: "SSC"},
	{Domain: "ssc.gov.in", Exam: "SSC"},
	{Domain: "ibps.in", Exam: "IBPS"},
	{Domain: "rbi.org.in", Exam: "RBI"},
	{Domain: "nta.ac.in", Exam: "NTA"},
	{Domain: "ncert.nic.in", Exam: "NCERT"},
	{Domain: "cbse.gov.in", Exam: "CBSE"},
	{Domain: "cbse.nic.in", Exam: "CBSE"},
	{Domain: "tnpsc.gov.in", Exam: "TNPSC"},
	{Domain: "mpsc.gov.in", Exam: "MPSC"},
	{Domain: "kpsc.kar.nic.in", Exam: "KPSC"},
	{Domain: "uppsc.up.nic.in", Exam: "UPPSC"},
	{Domain: "bpsc.bih.nic.in", Exam: "BPSC"},
	{Domain: "rpsc.rajasthan.gov.in", Exam: "RPSC"},
	{Domain: "psc.ap.gov.in", Exam: "APPSC"},
	{Domain: "tspsc.gov.in", Exam: "TSPSC"},
	{Domain: "opsc.gov.in", Exam: "OPSC"},
	{Domain: "wbpsc.gov.in", Exam: "WBPSC"},
	{Domain: "hpsc.gov.in", Exam: "HPSC"},
	{Domain: "keralapsc.gov.in", Exam: "KPSC-KL"},
	{Domain: "indianrailways.gov.in", Exam: "RRB"},
	{Domain: "rrbcdg.gov.in", Exam: "RRB"},
	{Domain: "joinindianarmy.nic.in", Exam: "ARMY"},
}

// Allowlist decides whether a source link belongs to an official authority.
type Allowlist struct {
	authorities []Authority
}

// ExtendDefaults appends extra authorities to DefaultAuthorities. Suffix
// rules such as ".gov.in" only take effect when supplied this way.
func ExtendDefaults(extra []Authority) []Authority {
	out := make([]Authority, 0, len(DefaultAuthorities)+len(extra))
	out = append(out, DefaultAuthorities...)
	return append(out, extra...)
}

// NewAllowlist builds an allowlist from the given authorities, falling back
// to DefaultAuthorities when none are supplied.
func NewAllowlist(authorities []Authority) *Allowlist {
	if len(authorities) == 0 {
		authorities = DefaultAuthorities
	}
	out := make([]Authority, 0, len(authorities))
	for _, a := range authorities {
		d := strings.ToLower(strings.TrimSpace(a.Domain))
		if d == "" || d == "." {
			continue
		}
		out = append(out, Authority{Domain: d, Exam: a.Exam})
	}
	return &Allowlist{authorities: out}
}

// ParseAuthorities reads "domain" or "domain=EXAM" entries, the form used in
// configuration files.
func ParseAuthorities(entries []string) []Authority {
	out := make([]Authority, 0, len(entries))
	for _, e := range entries {
		domain, exam, _ := strings.Cut(e, "=")
		domain = strings.TrimSpace(domain)
		if domain == "" {
			continue
		}
		out = append(out, Authority{Domain: domain, Exam: strings.ToUpper(strings.TrimSpace(exam))})
	}
	return out
}

// Matches reports whether rawURL's host is an official authority.
func (a *Allowlist) Matches(rawURL string) bool {
	_, ok := a.lookup(rawURL)
	return ok
}

// Verified is the provenance flag stored on ingested records.
func (a *Allowlist) Verified(rawURL string) bool {
	return a.Matches(rawURL)
}

// ExamFor returns the exam code of the authority hosting rawURL, or "" when
// the host is unknown or only matched by a suffix rule.
func (a *Allowlist) ExamFor(rawURL string) string {
	auth, ok := a.lookup(rawURL)
	if !ok {
		return ""
	}
	return auth.Exam
}

func (a *Allowlist) lookup(rawURL string) (Authority, bool) {
	host := hostOf(rawURL)
	if host == "" {
		return Authority{}, false
	}
	var suffixMatch *Authority
	for i := range a.authorities {
		auth := a.authorities[i]
		if strings.HasPrefix(auth.Domain, ".") {
			if suffixMatch == nil && strings.HasSuffix(host, auth.Domain) {
				suffixMatch = &a.authorities[i]
			}
			continue
		}
		if host == auth.Domain || strings.HasSuffix(host, "."+auth.Domain) {
			return auth, true
		}
	}
	if suffixMatch != nil {
		return *suffixMatch, true
	}
	return Authority{}, false
}

func hostOf(rawURL string) string {
	rawURL = strings.TrimSpace(rawURL)
	if rawURL == "" {
		return ""
	}
	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" {
		return ""
	}
	return strings.TrimPrefix(strings.ToLower(u.Hostname()), "www.")
}
