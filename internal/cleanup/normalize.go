// Package cleanup normalizes corpus records in bounded batches, flagging or
// deleting those that stay invalid after recovery.
package cleanup

import (
	"regexp"
	"slices"
	"strings"
	"time"
	"unicode/utf8"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/JakeFAU/pyq-crawler/internal/enrich"
	"github.com/JakeFAU/pyq-crawler/internal/question"
)

// MinQuestionLength is the shortest question kept for display.
const MinQuestionLength = 20

// Issue codes attached to records as review reasons.
const (
	IssueExamMissing      = "exam_missing"
	IssueYearMissing      = "year_missing"
	IssueYearOutOfRange   = "year_out_of_range"
	IssueQuestionTooShort = "question_too_short"
)

// Fix names counted in Stats.Fixes.
const (
	FixExam              = "exam"
	FixExamRecovered     = "exam_recovered"
	FixLevel             = "level"
	FixPaper             = "paper"
	FixYear              = "year"
	FixYearRecovered     = "year_recovered"
	FixQuestionSpace     = "question_whitespace"
	FixQuestionFromAns   = "question_from_answer"
	FixQuestionFromTheme = "question_from_theme"
	FixLang              = "lang"
	FixLangScript        = "lang_script"
	FixTopicTags         = "topic_tags"
	FixKeywords          = "keywords"
	FixVerified          = "verified"
	FixReviewCleared     = "review_cleared"
)

var examAliases = map[string]string{
	"upsc":                "UPSC",
	"upsc cse":            "UPSC",
	"upsc civil services": "UPSC",
	"civil services":      "UPSC",
	"cse":                 "UPSC",
	"ias":                 "UPSC",
	"ssc":                 "SSC",
	"ssc cgl":             "SSC",
	"ssc chsl":            "SSC",
	"staff selection":     "SSC",
	"ibps":                "IBPS",
	"ibps po":             "IBPS",
	"rbi":                 "RBI",
	"rbi grade b":         "RBI",
	"rrb":                 "RRB",
	"railways":            "RRB",
	"nta":                 "NTA",
	"ugc net":             "NTA",
	"state psc":           "STATE-PSC",
	"tnpsc":               "TNPSC",
	"mpsc":                "MPSC",
	"uppsc":               "UPPSC",
	"bpsc":                "BPSC",
	"rpsc":                "RPSC",
	"appsc":               "APPSC",
	"tspsc":               "TSPSC",
	"wbpsc":               "WBPSC",
	"kpsc":                "KPSC",
}

var levelAliases = map[string]string{
	"prelim":           "Prelims",
	"prelims":          "Prelims",
	"preliminary":      "Prelims",
	"preliminary exam": "Prelims",
	"tier 1":           "Prelims",
	"tier-1":           "Prelims",
	"main":             "Mains",
	"mains":            "Mains",
	"main exam":        "Mains",
	"tier 2":           "Mains",
	"tier-2":           "Mains",
	"interview":        "Interview",
	"personality test": "Interview",
	"personality":      "Interview",
}

var (
	gsPaperRe = regexp.MustCompile(`^(?:gs|general studies)(?:\s*paper)?[\s\-]*(iv|i{1,3}|[1-4])$`)
	romans    = map[string]string{"i": "1", "ii": "2", "iii": "3", "iv": "4"}
)

// Issue is a validation failure found on a record. Fatal issues make the
// record invalid; the rest only request review.
type Issue struct {
	Code  string
	Fatal bool
}

// Outcome is the result of normalizing one record.
type Outcome struct {
	Patch  question.Patch
	Issues []Issue
	Fixes  []string
}

// Invalid reports whether any fatal issue remains after recovery.
func (o Outcome) Invalid() bool {
	return slices.ContainsFunc(o.Issues, func(i Issue) bool { return i.Fatal })
}

// Reasons lists the issue codes in detection order.
func (o Outcome) Reasons() []string {
	out := make([]string, 0, len(o.Issues))
	for _, i := range o.Issues {
		out = append(out, i.Code)
	}
	return out
}

// Normalizer applies the field rules to one record at a time. It holds no
// per-record state and never touches the store.
type Normalizer struct {
	allowlist *enrich.Allowlist
	langs     map[string]struct{}
	ratio     float64
}

// NewNormalizer builds a Normalizer. Empty langs uses enrich.DefaultLangs and
// a non-positive ratio uses enrich.DefaultMixedLangRatio.
func NewNormalizer(allowlist *enrich.Allowlist, langs []string, ratio float64) *Normalizer {
	if allowlist == nil {
		allowlist = enrich.NewAllowlist(nil)
	}
	if len(langs) == 0 {
		langs = enrich.DefaultLangs
	}
	if ratio <= 0 {
		ratio = enrich.DefaultMixedLangRatio
	}
	set := make(map[string]struct{}, len(langs))
	for _, l := range langs {
		set[strings.ToLower(strings.TrimSpace(l))] = struct{}{}
	}
	return &Normalizer{allowlist: allowlist, langs: set, ratio: ratio}
}

// Normalize computes the patch, fixes and issues for rec. now pins the
// current year.
func (n *Normalizer) Normalize(rec question.Record, now time.Time) Outcome {
	var out Outcome
	fix := func(name string) { out.Fixes = append(out.Fixes, name) }
	issue := func(code string, fatal bool) { out.Issues = append(out.Issues, Issue{Code: code, Fatal: fatal}) }

	exam := CanonicalExam(rec.Exam)
	if exam == "" {
		if recovered := n.allowlist.ExamFor(rec.SourceLink); recovered != "" {
			exam = recovered
			fix(FixExamRecovered)
		} else {
			issue(IssueExamMissing, true)
		}
	} else if exam != rec.Exam {
		fix(FixExam)
	}
	if exam != "" && exam != rec.Exam {
		out.Patch.Exam = &exam
	}

	if level := CanonicalLevel(rec.Level); level != rec.Level {
		out.Patch.Level = &level
		fix(FixLevel)
	}
	if paper := CanonicalPaper(rec.Paper); paper != rec.Paper {
		out.Patch.Paper = &paper
		fix(FixPaper)
	}

	text := question.CollapseSpace(rec.Question)
	switch {
	case utf8.RuneCountInString(text) >= MinQuestionLength:
		if text != rec.Question {
			fix(FixQuestionSpace)
		}
	case utf8.RuneCountInString(question.CollapseSpace(rec.Answer)) >= MinQuestionLength:
		text = question.CollapseSpace(rec.Answer)
		fix(FixQuestionFromAns)
	case utf8.RuneCountInString(question.CollapseSpace(rec.Theme)) >= MinQuestionLength:
		text = question.CollapseSpace(rec.Theme)
		fix(FixQuestionFromTheme)
	default:
		issue(IssueQuestionTooShort, true)
	}
	if text != rec.Question {
		out.Patch.Question = &text
	}

	n.normalizeYear(rec, text, now, &out, fix, issue)

	lang := strings.ToLower(strings.TrimSpace(rec.Lang))
	if _, ok := n.langs[lang]; !ok {
		lang = question.DefaultLang
	}
	if lang != rec.Lang {
		fix(FixLang)
	}
	if detected := enrich.DetectScriptLanguage(text, lang, n.ratio); detected != lang {
		if _, ok := n.langs[detected]; ok {
			lang = detected
			fix(FixLangScript)
		}
	}
	if lang != rec.Lang {
		out.Patch.Lang = &lang
	}

	if tags := NormalizeTopicTags(rec.TopicTags); !slices.Equal(tags, rec.TopicTags) {
		out.Patch.TopicTags = &tags
		fix(FixTopicTags)
	}
	if kws := NormalizeKeywords(rec.Keywords); !slices.Equal(kws, rec.Keywords) {
		out.Patch.Keywords = &kws
		fix(FixKeywords)
	}

	if !rec.Verified && n.allowlist.Verified(rec.SourceLink) {
		verified := true
		out.Patch.Verified = &verified
		fix(FixVerified)
	}

	reasons := out.Reasons()
	switch {
	case len(reasons) > 0:
		if !rec.NeedsReview {
			flag := true
			out.Patch.NeedsReview = &flag
		}
		if !slices.Equal(reasons, rec.ReviewReasons) {
			out.Patch.ReviewReasons = &reasons
		}
	case rec.NeedsReview:
		cleared := false
		empty := []string{}
		out.Patch.NeedsReview = &cleared
		out.Patch.ReviewReasons = &empty
		fix(FixReviewCleared)
	}
	return out
}

func (n *Normalizer) normalizeYear(
	rec question.Record,
	text string,
	now time.Time,
	out *Outcome,
	fix func(string),
	issue func(string, bool),
) {
	current := now.Year()
	infer := func() (int, bool) {
		return enrich.FirstYearBetween(text+" "+rec.Analysis, question.MinYear, current)
	}

	if rec.Year == nil {
		if y, ok := infer(); ok {
			out.Patch.Year = &y
			fix(FixYearRecovered)
			return
		}
		issue(IssueYearMissing, false)
		return
	}

	y := ExpandYear(*rec.Year, current)
	if y == current+1 {
		y = current
	}
	if y < question.MinYear || y > current {
		recovered, ok := infer()
		if !ok {
			issue(IssueYearOutOfRange, true)
			return
		}
		y = recovered
	}
	if y != *rec.Year {
		out.Patch.Year = &y
		fix(FixYear)
	}
}

// ExpandYear turns a two-digit year into the most recent matching year not
// after current. Other values are returned unchanged.
func ExpandYear(y, current int) int {
	if y < 0 || y > 99 {
		return y
	}
	century := current / 100 * 100
	if century+y > current {
		return century - 100 + y
	}
	return century + y
}

// CanonicalExam maps known aliases to exam codes and upper-cases the rest.
func CanonicalExam(exam string) string {
	key := strings.ToLower(question.CollapseSpace(exam))
	if key == "" {
		return ""
	}
	if code, ok := examAliases[key]; ok {
		return code
	}
	return strings.ToUpper(question.CollapseSpace(exam))
}

// CanonicalLevel maps stage aliases; unknown values are only trimmed.
func CanonicalLevel(level string) string {
	trimmed := question.CollapseSpace(level)
	if canon, ok := levelAliases[strings.ToLower(trimmed)]; ok {
		return canon
	}
	return trimmed
}

// CanonicalPaper normalizes GS paper numbering and the named papers.
func CanonicalPaper(paper string) string {
	trimmed := question.CollapseSpace(paper)
	key := strings.ToLower(trimmed)
	if m := gsPaperRe.FindStringSubmatch(key); m != nil {
		num := m[1]
		if arabic, ok := romans[num]; ok {
			num = arabic
		}
		return "GS-" + num
	}
	switch key {
	case "csat", "gs paper 2 csat", "gs-2 csat":
		return "CSAT"
	case "essay", "essay paper":
		return "Essay"
	case "optional", "optional paper":
		return "Optional"
	}
	return trimmed
}

// NormalizeTopicTags trims, title-cases, dedupes and caps topic tags.
func NormalizeTopicTags(tags []string) []string {
	caser := cases.Title(language.English, cases.NoLower)
	return normalizeList(tags, question.MaxTopicTags, question.MaxTopicTagLength, caser.String)
}

// NormalizeKeywords trims, dedupes and caps keywords.
func NormalizeKeywords(keywords []string) []string {
	return normalizeList(keywords, question.MaxKeywords, question.MaxKeywordLength, nil)
}

func normalizeList(in []string, maxItems, maxLen int, transform func(string) string) []string {
	out := make([]string, 0, min(len(in), maxItems))
	seen := make(map[string]struct{}, len(in))
	for _, raw := range in {
		v := question.CollapseSpace(raw)
		if v == "" {
			continue
		}
		v = strings.TrimSpace(question.Prefix(v, maxLen))
		if transform != nil {
			v = transform(v)
		}
		key := strings.ToLower(v)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, v)
		if len(out) == maxItems {
			break
		}
	}
	return out
}
