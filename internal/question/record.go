package question

import (
	"strings"
	"time"
	"unicode/utf8"
)

// Limits applied to records at ingestion and cleanup time.
const (
	MaxTopicTags      = 10
	MaxKeywords       = 8
	MaxTopicTagLength = 100
	MaxKeywordLength  = 50
	MinYear           = 1990
	DefaultLang       = "en"
)

// Record is one previous-year question in the corpus.
type Record struct {
	ID            string    `bson:"_id" json:"id"`
	Exam          string    `bson:"exam" json:"exam"`
	Level         string    `bson:"level" json:"level"`
	Paper         string    `bson:"paper" json:"paper"`
	Year          *int      `bson:"year" json:"year"`
	Question      string    `bson:"question" json:"question"`
	TopicTags     []string  `bson:"topicTags" json:"topicTags"`
	Keywords      []string  `bson:"keywords" json:"keywords"`
	Analysis      string    `bson:"analysis,omitempty" json:"analysis,omitempty"`
	Answer        string    `bson:"answer,omitempty" json:"answer,omitempty"`
	Theme         string    `bson:"theme,omitempty" json:"theme,omitempty"`
	SourceLink    string    `bson:"sourceLink" json:"sourceLink"`
	Lang          string    `bson:"lang" json:"lang"`
	Verified      bool      `bson:"verified" json:"verified"`
	NeedsReview   bool      `bson:"needsReview,omitempty" json:"needsReview,omitempty"`
	ReviewReasons []string  `bson:"reviewReasons,omitempty" json:"reviewReasons,omitempty"`
	CreatedAt     time.Time `bson:"createdAt" json:"createdAt"`
	UpdatedAt     time.Time `bson:"updatedAt" json:"updatedAt"`
}

// Clone returns a deep copy so callers can mutate slices freely.
func (r Record) Clone() Record {
	cp := r
	if r.Year != nil {
		y := *r.Year
		cp.Year = &y
	}
	cp.TopicTags = cloneStrings(r.TopicTags)
	cp.Keywords = cloneStrings(r.Keywords)
	cp.ReviewReasons = cloneStrings(r.ReviewReasons)
	return cp
}

// CollapseSpace trims s and folds every whitespace run into a single space.
func CollapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// Prefix returns the first n runes of s.
func Prefix(s string, n int) string {
	if n <= 0 {
		return ""
	}
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

// IntPtr is a convenience for building nullable years.
func IntPtr(v int) *int {
	return &v
}

func cloneStrings(in []string) []string {
	if in == nil {
		return nil
	}
	out := make([]string, len(in))
	copy(out, in)
	return out
}
