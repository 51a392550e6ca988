package extract

import (
	"regexp"
	"strconv"
	"strings"

	"lead-engine/internal/domain"
)

type propertyTypeRule struct {
	re    *regexp.Regexp
	value string
	conf  domain.Confidence
}

// Checked in order; more specific types come first.
var propertyTypeRules = []propertyTypeRule{
	{regexp.MustCompile(`(?i)\b(?:mobile|manufactured) homes?\b`), "mobile home", domain.ConfidenceHigh},
	{regexp.MustCompile(`(?i)\b(?:town\s?houses?|town\s?homes?|row\s?houses?)\b`), "townhouse", domain.ConfidenceHigh},
	{regexp.MustCompile(`(?i)\b(?:condos?|condominiums?)\b`), "condo", domain.ConfidenceHigh},
	{regexp.MustCompile(`(?i)\b(?:multi[\s\-]?family|duplex|triplex|fourplex|quadplex)\b`), "multi-family", domain.ConfidenceHigh},
	{regexp.MustCompile(`(?i)\bapartments?\b`), "apartment", domain.ConfidenceHigh},
	{regexp.MustCompile(`(?i)\b(?:vacant lot|land|acreage|acres)\b`), "land", domain.ConfidenceHigh},
	{regexp.MustCompile(`(?i)\b(?:houses?|single[\s\-]family|bungalow|ranch|cottage|detached)\b`), "house", domain.ConfidenceHigh},
	// "home" is often used loosely ("sell my home"), so unprompted it only
	// hints at a house.
	{regexp.MustCompile(`(?i)\bhomes?\b`), "house", domain.ConfidenceLow},
}

var (
	huntingRe = regexp.MustCompile(`(?i)\b(?:house|home)[\s\-]hunting\b`)

	addressRe = regexp.MustCompile(`(?i)\b\d{1,6}\s+(?:[A-Za-z][A-Za-z.'\-]*\s+){1,4}?(?:street|st|avenue|ave|road|rd|drive|dr|lane|ln|boulevard|blvd|court|ct|way|place|pl|circle|cir|terrace|ter|parkway|pkwy|highway|hwy|trail|trl|square|sq)\b\.?`)
	// Accepted only when the assistant just asked for the address.
	looseAddressRe = regexp.MustCompile(`\b\d{1,6}\s+[A-Za-z][A-Za-z0-9 .'\-]{2,60}`)

	numberWord = `\d{1,2}(?:\.5)?|one|two|three|four|five|six|seven|eight|nine|ten`

	bedroomsRe  = regexp.MustCompile(`(?i)\b(` + numberWord + `)[\s\-]*(?:bed(?:room)?s?|br|bd|bdrm)\b`)
	bathroomsRe = regexp.MustCompile(`(?i)\b(` + numberWord + `)(\s+and\s+(?:a\s+)?half)?[\s\-]*(?:full\s+)?(?:bath(?:room)?s?|ba)\b`)
	bareCountRe = regexp.MustCompile(`(?i)^\s*(` + numberWord + `)\s*[.!]?\s*$`)
)

var numberWords = map[string]float64{
	"one": 1, "two": 2, "three": 3, "four": 4, "five": 5,
	"six": 6, "seven": 7, "eight": 8, "nine": 9, "ten": 10,
}

func extractPropertyType(text string, c Context) (string, domain.Confidence, bool) {
	text = huntingRe.ReplaceAllString(text, "")
	for _, rule := range propertyTypeRules {
		if rule.re.MatchString(text) {
			if c.solicited(domain.FieldPropertyType) {
				return rule.value, domain.ConfidenceHigh, true
			}
			return rule.value, rule.conf, true
		}
	}
	return "", "", false
}

func extractAddress(text string, c Context) (string, domain.Confidence, bool) {
	if m := addressRe.FindString(text); m != "" {
		return strings.TrimRight(strings.TrimSpace(m), "."), domain.ConfidenceHigh, true
	}
	if !c.solicited(domain.FieldPropertyAddress) {
		return "", "", false
	}
	m := looseAddressRe.FindString(text)
	if m == "" {
		return "", "", false
	}
	if i := strings.IndexAny(m, ",.!?"); i > 0 {
		m = m[:i]
	}
	return strings.TrimSpace(m), domain.ConfidenceLow, true
}

func extractBedrooms(text string, c Context) (string, domain.Confidence, bool) {
	if m := bedroomsRe.FindStringSubmatch(text); m != nil {
		if n, ok := parseCount(m[1], false); ok {
			return n, domain.ConfidenceHigh, true
		}
	}
	return bareCount(text, c, domain.FieldBedrooms)
}

func extractBathrooms(text string, c Context) (string, domain.Confidence, bool) {
	if m := bathroomsRe.FindStringSubmatch(text); m != nil {
		if n, ok := parseCount(m[1], m[2] != ""); ok {
			return n, domain.ConfidenceHigh, true
		}
	}
	return bareCount(text, c, domain.FieldBathrooms)
}

// bareCount accepts a lone number as the answer to a bedroom or bathroom prompt.
func bareCount(text string, c Context, key domain.FieldKey) (string, domain.Confidence, bool) {
	if !c.solicited(key) {
		return "", "", false
	}
	m := bareCountRe.FindStringSubmatch(text)
	if m == nil {
		return "", "", false
	}
	n, ok := parseCount(m[1], false)
	if !ok {
		return "", "", false
	}
	return n, domain.ConfidenceLow, true
}

func parseCount(s string, half bool) (string, bool) {
	s = strings.ToLower(strings.TrimSpace(s))
	n, ok := numberWords[s]
	if !ok {
		v, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return "", false
		}
		n = v
	}
	if half {
		n += 0.5
	}
	if n < 0 || n > 50 {
		return "", false
	}
	return strconv.FormatFloat(n, 'f', -1, 64), true
}
