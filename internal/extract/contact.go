package extract

import (
	"regexp"
	"strings"

	"lead-engine/internal/domain"
)

const (
	minPhoneDigits     = 7
	maxPhoneDigits     = 15
	trustedPhoneDigits = 10
)

var (
	emailRe = regexp.MustCompile(`[A-Za-z0-9._%+\-]+@[A-Za-z0-9.\-]+\.[A-Za-z]{2,}`)

	// Tried in order; within a pattern the match with the most digits wins.
	phonePatterns = []*regexp.Regexp{
		// North American, optionally with a +1 prefix.
		regexp.MustCompile(`(?:\+?1[\s.\-]?)?\(?\b\d{3}\)?[\s.\-]?\d{3}[\s.\-]?\d{4}\b`),
		// Any other run of digits and separators, international or local.
		regexp.MustCompile(`\+?\(?\b\d[\d\s.\-()]{5,20}\d\b`),
		// Local seven digit number.
		regexp.MustCompile(`\b\d{3}[\s.\-]?\d{4}\b`),
	}
)

func extractEmail(text string, _ Context) (string, domain.Confidence, bool) {
	m := emailRe.FindString(text)
	if m == "" {
		return "", "", false
	}
	return strings.ToLower(m), domain.ConfidenceHigh, true
}

func extractPhone(text string, c Context) (string, domain.Confidence, bool) {
	// Digits inside an email address are not a phone number.
	masked := emailRe.ReplaceAllStringFunc(text, func(s string) string {
		return strings.Repeat(" ", len(s))
	})
	for _, re := range phonePatterns {
		best := ""
		for _, m := range re.FindAllString(masked, -1) {
			digits := NormalizePhone(m)
			if len(digits) < minPhoneDigits || len(digits) > maxPhoneDigits {
				continue
			}
			if len(digits) > len(best) {
				best = digits
			}
		}
		if best == "" {
			continue
		}
		conf := domain.ConfidenceHigh
		if len(best) < trustedPhoneDigits && !c.solicited(domain.FieldPhone) {
			conf = domain.ConfidenceLow
		}
		return best, conf, true
	}
	return "", "", false
}

// NormalizePhone strips everything but digits, the canonical stored form.
func NormalizePhone(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}
