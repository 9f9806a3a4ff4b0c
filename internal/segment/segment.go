// Package segment turns extracted document text into discrete question
// strings. The segmentation is a single forward pass over lines and is
// deliberately heuristic: compound questions with numbered sub-parts may be
// split or merged imperfectly.
package segment

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/JakeFAU/pyq-crawler/internal/question"
)

// Candidate length bounds, in characters. MinPartLength applies to the text
// after the enumerator of a part split out of a compound candidate.
const (
	MinLength     = 15
	MaxLength     = 500
	MinPartLength = 8
)

const boilerplateWindow = 20

var (
	enumeratorRe  = regexp.MustCompile(`^(?:\d+[.)]|[Qq]\.?\s?\d+|\(\w\))`)
	inlineEnumRe  = regexp.MustCompile(`\?\s+(?:\d+[.)]|[Qq]\.?\s?\d+)\s`)
	boilerplateRe = regexp.MustCompile(`(?i)\b(?:page|continued|see|refer)\b`)
)

// Segment splits text into question strings, whitespace-collapsed and
// deduplicated by exact match in first-seen order.
func Segment(text string) []string {
	s := &segmenter{}
	for _, raw := range strings.Split(text, "\n") {
		line := strings.TrimSpace(raw)
		if line == "" {
			continue
		}
		s.feed(line)
	}
	if strings.Contains(s.buffer, "?") {
		s.emit(s.buffer)
	}
	return s.finish()
}

type segmenter struct {
	buffer     string
	candidates []string
}

func (s *segmenter) feed(line string) {
	prior := s.buffer
	merged := join(prior, line)

	switch {
	case strings.HasSuffix(merged, "?"):
		s.emit(merged)
		s.buffer = ""
	case enumeratorRe.MatchString(line) && strings.Contains(prior, "?"):
		s.emit(prior)
		s.buffer = line
	default:
		s.buffer = merged
		if utf8.RuneCountInString(s.buffer) > MaxLength && strings.Contains(s.buffer, "?") {
			s.splitOverflow()
		}
	}
}

// splitOverflow emits every complete "...?" segment of an oversized buffer
// and keeps the trailing remainder.
func (s *segmenter) splitOverflow() {
	rest := s.buffer
	for {
		idx := strings.Index(rest, "?")
		if idx < 0 {
			break
		}
		s.emit(rest[:idx+1])
		rest = rest[idx+1:]
	}
	s.buffer = strings.TrimSpace(rest)
}

func (s *segmenter) emit(candidate string) {
	c := question.CollapseSpace(candidate)
	if inRange(c) {
		s.candidates = append(s.candidates, c)
	}
}

func (s *segmenter) finish() []string {
	seen := make(map[string]struct{}, len(s.candidates))
	out := make([]string, 0, len(s.candidates))
	for _, c := range s.candidates {
		if !accept(c) {
			continue
		}
		parts := splitEnumerated(c)
		for _, part := range parts {
			if len(parts) > 1 && !acceptPart(part) {
				continue
			}
			if _, dup := seen[part]; dup {
				continue
			}
			seen[part] = struct{}{}
			out = append(out, part)
		}
	}
	return out
}

func accept(c string) bool {
	if !inRange(c) || !strings.Contains(c, "?") {
		return false
	}
	return !boilerplateRe.MatchString(question.Prefix(c, boilerplateWindow))
}

// acceptPart filters one part of a split candidate. A numbered part is
// judged on the text after its enumerator, which may be shorter than
// MinLength; an unnumbered part must meet the full bounds.
func acceptPart(part string) bool {
	if !strings.Contains(part, "?") {
		return false
	}
	body := strings.TrimSpace(enumeratorRe.ReplaceAllString(part, ""))
	if body == part {
		return accept(part)
	}
	n := utf8.RuneCountInString(body)
	if n < MinPartLength || n > MaxLength {
		return false
	}
	return !boilerplateRe.MatchString(question.Prefix(body, boilerplateWindow))
}

// splitEnumerated breaks an accepted candidate at numeric enumerators that
// directly follow a question mark ("1. What is X? 2. What is Y?"). Lettered
// options like "(a)" never split.
func splitEnumerated(c string) []string {
	locs := inlineEnumRe.FindAllStringIndex(c, -1)
	if len(locs) == 0 {
		return []string{c}
	}
	parts := make([]string, 0, len(locs)+1)
	start := 0
	for _, loc := range locs {
		end := loc[0] + 1
		if part := strings.TrimSpace(c[start:end]); part != "" {
			parts = append(parts, part)
		}
		start = end
	}
	tail := strings.TrimSpace(c[start:])
	switch {
	case tail == "":
	case strings.Contains(tail, "?") || len(parts) == 0:
		parts = append(parts, tail)
	default:
		parts[len(parts)-1] += " " + tail
	}
	return parts
}

func inRange(c string) bool {
	n := utf8.RuneCountInString(c)
	return n >= MinLength && n <= MaxLength
}

func join(buffer, line string) string {
	if buffer == "" {
		return line
	}
	return buffer + " " + line
}
