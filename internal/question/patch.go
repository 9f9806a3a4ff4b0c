package question

import "time"

// Patch is a set of optional field changes applied to one record at once.
// Nil fields are left untouched.
type Patch struct {
	Exam          *string
	Level         *string
	Paper         *string
	Year          *int
	Question      *string
	Lang          *string
	TopicTags     *[]string
	Keywords      *[]string
	Verified      *bool
	NeedsReview   *bool
	ReviewReasons *[]string
}

// IsEmpty reports whether the patch changes nothing.
func (p Patch) IsEmpty() bool {
	return p.Exam == nil && p.Level == nil && p.Paper == nil && p.Year == nil &&
		p.Question == nil && p.Lang == nil && p.TopicTags == nil && p.Keywords == nil &&
		p.Verified == nil && p.NeedsReview == nil && p.ReviewReasons == nil
}

// Apply returns a copy of rec with the patch applied and UpdatedAt set to now.
func (p Patch) Apply(rec Record, now time.Time) Record {
	out := rec.Clone()
	if p.Exam != nil {
		out.Exam = *p.Exam
	}
	if p.Level != nil {
		out.Level = *p.Level
	}
	if p.Paper != nil {
		out.Paper = *p.Paper
	}
	if p.Year != nil {
		out.Year = IntPtr(*p.Year)
	}
	if p.Question != nil {
		out.Question = *p.Question
	}
	if p.Lang != nil {
		out.Lang = *p.Lang
	}
	if p.TopicTags != nil {
		out.TopicTags = cloneStrings(*p.TopicTags)
	}
	if p.Keywords != nil {
		out.Keywords = cloneStrings(*p.Keywords)
	}
	if p.Verified != nil {
		out.Verified = *p.Verified
	}
	if p.NeedsReview != nil {
		out.NeedsReview = *p.NeedsReview
	}
	if p.ReviewReasons != nil {
		out.ReviewReasons = cloneStrings(*p.ReviewReasons)
	}
	out.UpdatedAt = now
	return out
}

// Fields flattens the patch into stored field names, suitable for a $set
// document. UpdatedAt is always included.
func (p Patch) Fields(now time.Time) map[string]any {
	fields := map[string]any{"updatedAt": now}
	if p.Exam != nil {
		fields["exam"] = *p.Exam
	}
	if p.Level != nil {
		fields["level"] = *p.Level
	}
	if p.Paper != nil {
		fields["paper"] = *p.Paper
	}
	if p.Year != nil {
		fields["year"] = *p.Year
	}
	if p.Question != nil {
		fields["question"] = *p.Question
	}
	if p.Lang != nil {
		fields["lang"] = *p.Lang
	}
	if p.TopicTags != nil {
		fields["topicTags"] = cloneStrings(*p.TopicTags)
	}
	if p.Keywords != nil {
		fields["keywords"] = cloneStrings(*p.Keywords)
	}
	if p.Verified != nil {
		fields["verified"] = *p.Verified
	}
	if p.NeedsReview != nil {
		fields["needsReview"] = *p.NeedsReview
	}
	if p.ReviewReasons != nil {
		fields["reviewReasons"] = cloneStrings(*p.ReviewReasons)
	}
	return fields
}
