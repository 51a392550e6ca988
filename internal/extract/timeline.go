package extract

import (
	"regexp"
	"strconv"
	"strings"

	"lead-engine/internal/domain"
)

type timelineRule struct {
	re     *regexp.Regexp
	bucket string

	// Vague wording only counts as an answer to a timeline question.
	askedOnly bool
}

// Checked in order; the most urgent phrasing wins.
var timelineRules = []timelineRule{
	{regexp.MustCompile(`(?i)\b(?:asap|a\.s\.a\.p|as soon as possible|immediately|right away|right now|urgent(?:ly)?|this week|next week|this month|within (?:a|one) month)\b`), domain.TimelineImmediate, false},
	{regexp.MustCompile(`(?i)\b(?:next month|next couple (?:of )?months|(?:a )?few weeks|couple (?:of )?weeks)\b`), domain.TimelineShortTerm, false},
	{regexp.MustCompile(`(?i)\bsoon\b`), domain.TimelineShortTerm, true},
	{regexp.MustCompile(`(?i)\b(?:(?:a )?few months|couple (?:of )?months|six months|half a year|later this year|this year|within (?:a|the) year|in a year|next year|twelve months)\b`), domain.TimelineMidTerm, false},
	{regexp.MustCompile(`(?i)\b(?:just exploring|exploring|just looking|just browsing|no rush|no timeline|someday|eventually)\b`), domain.TimelineExploring, false},
	{regexp.MustCompile(`(?i)\b(?:not sure|curious|don't know|unsure)\b`), domain.TimelineExploring, true},
}

var (
	durationRe = regexp.MustCompile(`(?i)\b(?:within|in|next|about|around|under)\s+(?:the\s+next\s+)?(\d{1,3}|a|one|two|three|four|five|six|seven|eight|nine|ten|eleven|twelve)\s+(day|week|month|year)s?\b`)

	durationWords = map[string]int{
		"a": 1, "one": 1, "two": 2, "three": 3, "four": 4, "five": 5, "six": 6,
		"seven": 7, "eight": 8, "nine": 9, "ten": 10, "eleven": 11, "twelve": 12,
	}
	unitDays = map[string]int{"day": 1, "week": 7, "month": 30, "year": 365}
)

func extractTimeline(text string, c Context) (string, domain.Confidence, bool) {
	if m := durationRe.FindStringSubmatch(text); m != nil {
		if days, ok := durationDays(m[1], m[2]); ok {
			return TimelineForDays(days), domain.ConfidenceHigh, true
		}
	}
	asked := c.solicited(domain.FieldTimeline)
	for _, rule := range timelineRules {
		if rule.askedOnly && !asked {
			continue
		}
		if rule.re.MatchString(text) {
			return rule.bucket, domain.ConfidenceHigh, true
		}
	}
	return "", "", false
}

func durationDays(count, unit string) (int, bool) {
	count = strings.ToLower(count)
	n, ok := durationWords[count]
	if !ok {
		v, err := strconv.Atoi(count)
		if err != nil {
			return 0, false
		}
		n = v
	}
	per, ok := unitDays[strings.ToLower(unit)]
	if !ok || n <= 0 {
		return 0, false
	}
	return n * per, true
}

// TimelineForDays maps a horizon in days onto a canonical timeline bucket.
func TimelineForDays(days int) string {
	switch {
	case days <= 31:
		return domain.TimelineImmediate
	case days <= 92:
		return domain.TimelineShortTerm
	case days <= 366:
		return domain.TimelineMidTerm
	}
	return domain.TimelineExploring
}
