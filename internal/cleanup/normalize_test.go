package cleanup

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/pyq-crawler/internal/question"
)

var now2024 = time.Date(2024, 7, 1, 0, 0, 0, 0, time.UTC)

const longQuestion = "Examine the role of the Finance Commission in fiscal federalism?"

func TestCanonicalExam(t *testing.T) {
	t.Parallel()

	tests := map[string]string{
		"upsc":            "UPSC",
		" UPSC  CSE ":     "UPSC",
		"Civil Services":  "UPSC",
		"ias":             "UPSC",
		"ssc":             "SSC",
		"gate":            "GATE",
		"":                "",
		"   ":             "",
		"Staff Selection": "SSC",
	}
	for in, want := range tests {
		require.Equal(t, want, CanonicalExam(in), "input %q", in)
	}
}

func TestCanonicalLevel(t *testing.T) {
	t.Parallel()

	tests := map[string]string{
		"prelim":           "Prelims",
		"Preliminary":      "Prelims",
		"MAINS":            "Mains",
		"main":             "Mains",
		"Personality Test": "Interview",
		"":                 "",
		" Stage  3 ":       "Stage 3",
	}
	for in, want := range tests {
		require.Equal(t, want, CanonicalLevel(in), "input %q", in)
	}
}

func TestCanonicalPaper(t *testing.T) {
	t.Parallel()

	tests := map[string]string{
		"GS 1":                    "GS-1",
		"GS1":                     "GS-1",
		"gs-iii":                  "GS-3",
		"General Studies Paper 4": "GS-4",
		"gs paper ii":             "GS-2",
		"csat":                    "CSAT",
		"ESSAY":                   "Essay",
		"optional":                "Optional",
		"GS-1":                    "GS-1",
		"Anthropology":            "Anthropology",
		"":                        "",
	}
	for in, want := range tests {
		require.Equal(t, want, CanonicalPaper(in), "input %q", in)
	}
}

func TestExpandYear(t *testing.T) {
	t.Parallel()

	require.Equal(t, 2019, ExpandYear(19, 2024))
	require.Equal(t, 2024, ExpandYear(24, 2024))
	require.Equal(t, 1998, ExpandYear(98, 2024))
	require.Equal(t, 2015, ExpandYear(2015, 2024))
}

func TestNormalizeTopicTags(t *testing.T) {
	t.Parallel()

	in := []string{"  indian  polity ", "Indian Polity", "", "GDP growth", "a", "b", "c", "d", "e", "f", "g", "h", "i"}
	got := NormalizeTopicTags(in)
	require.Len(t, got, question.MaxTopicTags)
	require.Equal(t, "Indian Polity", got[0])
	require.Equal(t, "GDP Growth", got[1])
	require.Equal(t, "A", got[2])
}

func TestNormalizeKeywords(t *testing.T) {
	t.Parallel()

	long := ""
	for range 60 {
		long += "x"
	}
	got := NormalizeKeywords([]string{"fiscal", "Fiscal", long, " "})
	require.Equal(t, []string{"fiscal", long[:question.MaxKeywordLength]}, got)
}

func TestNormalize(t *testing.T) {
	t.Parallel()

	n := NewNormalizer(nil, nil, 0)

	tests := []struct {
		name        string
		rec         question.Record
		check       func(t *testing.T, out Outcome)
		wantInvalid bool
	}{
		{
			name: "clean record is untouched",
			rec: question.Record{
				Exam: "UPSC", Level: "Mains", Paper: "GS-2", Year: question.IntPtr(2020),
				Question: longQuestion, Lang: "en", TopicTags: []string{"Polity"}, Keywords: []string{"finance"},
			},
			check: func(t *testing.T, out Outcome) {
				require.True(t, out.Patch.IsEmpty())
				require.Empty(t, out.Fixes)
			},
		},
		{
			name: "aliases and whitespace",
			rec: question.Record{
				Exam: "upsc cse", Level: "prelims", Paper: "gs1", Year: question.IntPtr(19),
				Question: "  Examine   the role of the Finance Commission?  ", Lang: "EN",
			},
			check: func(t *testing.T, out Outcome) {
				require.Equal(t, "UPSC", *out.Patch.Exam)
				require.Equal(t, "Prelims", *out.Patch.Level)
				require.Equal(t, "GS-1", *out.Patch.Paper)
				require.Equal(t, 2019, *out.Patch.Year)
				require.Equal(t, "Examine the role of the Finance Commission?", *out.Patch.Question)
				require.Equal(t, "en", *out.Patch.Lang)
				require.ElementsMatch(t, []string{FixExam, FixLevel, FixPaper, FixYear, FixQuestionSpace, FixLang}, out.Fixes)
			},
		},
		{
			name: "missing exam recovered from official link",
			rec: question.Record{
				Year: question.IntPtr(2021), Question: longQuestion, Lang: "en",
				SourceLink: "https://upsc.gov.in/papers/gs2.pdf",
			},
			check: func(t *testing.T, out Outcome) {
				require.Equal(t, "UPSC", *out.Patch.Exam)
				require.True(t, *out.Patch.Verified)
				require.Contains(t, out.Fixes, FixExamRecovered)
				require.Contains(t, out.Fixes, FixVerified)
			},
		},
		{
			name:        "missing exam is invalid",
			rec:         question.Record{Year: question.IntPtr(2021), Question: longQuestion, Lang: "en"},
			wantInvalid: true,
			check: func(t *testing.T, out Outcome) {
				require.True(t, *out.Patch.NeedsReview)
				require.Equal(t, []string{IssueExamMissing}, *out.Patch.ReviewReasons)
			},
		},
		{
			name: "next year clamps to current",
			rec:  question.Record{Exam: "UPSC", Year: question.IntPtr(2025), Question: longQuestion, Lang: "en"},
			check: func(t *testing.T, out Outcome) {
				require.Equal(t, 2024, *out.Patch.Year)
			},
		},
		{
			name: "missing year recovered from text",
			rec:  question.Record{Exam: "UPSC", Question: longQuestion, Analysis: "Asked in the 2018 mains.", Lang: "en"},
			check: func(t *testing.T, out Outcome) {
				require.Equal(t, 2018, *out.Patch.Year)
				require.Contains(t, out.Fixes, FixYearRecovered)
			},
		},
		{
			name: "unrecoverable missing year only requests review",
			rec:  question.Record{Exam: "UPSC", Question: longQuestion, Lang: "en"},
			check: func(t *testing.T, out Outcome) {
				require.Equal(t, []string{IssueYearMissing}, out.Reasons())
				require.True(t, *out.Patch.NeedsReview)
			},
		},
		{
			name:        "ancient year is invalid",
			rec:         question.Record{Exam: "UPSC", Year: question.IntPtr(1962), Question: longQuestion, Lang: "en"},
			wantInvalid: true,
		},
		{
			name: "short question replaced by answer",
			rec: question.Record{
				Exam: "UPSC", Year: question.IntPtr(2020), Question: "Explain?", Lang: "en",
				Answer: "Explain the doctrine of basic structure?",
			},
			check: func(t *testing.T, out Outcome) {
				require.Equal(t, "Explain the doctrine of basic structure?", *out.Patch.Question)
				require.Contains(t, out.Fixes, FixQuestionFromAns)
			},
		},
		{
			name: "short question replaced by theme",
			rec: question.Record{
				Exam: "UPSC", Year: question.IntPtr(2020), Question: "Why?", Lang: "en",
				Theme: "Federalism and centre-state relations",
			},
			check: func(t *testing.T, out Outcome) {
				require.Contains(t, out.Fixes, FixQuestionFromTheme)
			},
		},
		{
			name:        "short question without substitute is invalid",
			rec:         question.Record{Exam: "UPSC", Year: question.IntPtr(2020), Question: "Why?", Lang: "en"},
			wantInvalid: true,
		},
		{
			name: "unknown lang defaults to en",
			rec:  question.Record{Exam: "UPSC", Year: question.IntPtr(2020), Question: longQuestion, Lang: "xx"},
			check: func(t *testing.T, out Outcome) {
				require.Equal(t, "en", *out.Patch.Lang)
			},
		},
		{
			name: "devanagari question switches to hi",
			rec: question.Record{
				Exam: "UPSC", Year: question.IntPtr(2020), Lang: "en",
				Question: "भारत में वित्त आयोग की भूमिका का परीक्षण कीजिए?",
			},
			check: func(t *testing.T, out Outcome) {
				require.Equal(t, "hi", *out.Patch.Lang)
				require.Contains(t, out.Fixes, FixLangScript)
			},
		},
		{
			name: "resolved review flag is cleared",
			rec: question.Record{
				Exam: "UPSC", Year: question.IntPtr(2020), Question: longQuestion, Lang: "en",
				NeedsReview: true, ReviewReasons: []string{IssueExamMissing},
			},
			check: func(t *testing.T, out Outcome) {
				require.False(t, *out.Patch.NeedsReview)
				require.Empty(t, *out.Patch.ReviewReasons)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			out := n.Normalize(tt.rec, now2024)
			require.Equal(t, tt.wantInvalid, out.Invalid())
			if tt.check != nil {
				tt.check(t, out)
			}
		})
	}
}
