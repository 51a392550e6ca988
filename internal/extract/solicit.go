package extract

import (
	"regexp"
	"strings"

	"lead-engine/internal/domain"
)

type solicitRule struct {
	re  *regexp.Regexp
	key domain.FieldKey
}

// Ties on position are broken by rule order.
var solicitRules = []solicitRule{
	{regexp.MustCompile(`(?i)bedrooms?|\bbeds\b`), domain.FieldBedrooms},
	{regexp.MustCompile(`(?i)bathrooms?|\bbaths\b`), domain.FieldBathrooms},
	{regexp.MustCompile(`(?i)what should i call you|who am i (?:speaking|chatting) (?:to|with)|\bname\b`), domain.FieldName},
	{regexp.MustCompile(`(?i)e-?mail`), domain.FieldEmail},
	{regexp.MustCompile(`(?i)phone|\bcell\b|(?:best|contact|good) number|number (?:to|where|at which)|reach you|text you`), domain.FieldPhone},
	{regexp.MustCompile(`(?i)address|where is (?:the|your) (?:property|home|house)|located`), domain.FieldPropertyAddress},
	{regexp.MustCompile(`(?i)(?:type|kind|sort|style) of (?:property|home|house|place)|property type`), domain.FieldPropertyType},
	{regexp.MustCompile(`(?i)\bbuy(?:ing)?\b.*\bsell(?:ing)?\b|\bsell(?:ing)?\b.*\bbuy(?:ing)?\b|looking to (?:buy|sell)`), domain.FieldBuyingOrSelling},
	{regexp.MustCompile(`(?i)timeline|time ?frame|how soon|when (?:are|do|would|were) you (?:hoping|planning|looking|thinking|want)|when would you like`), domain.FieldTimeline},
}

// Solicited reports which field an assistant message asks for. Only the last
// question in the message is considered, and within it the earliest mention
// wins. It returns nil when the message asks for nothing recognisable.
func Solicited(assistantText string) *domain.FieldKey {
	question := lastQuestion(assistantText)
	if question == "" {
		return nil
	}
	best, bestPos := -1, len(question)+1
	for i, rule := range solicitRules {
		loc := rule.re.FindStringIndex(question)
		if loc == nil {
			continue
		}
		if loc[0] < bestPos {
			best, bestPos = i, loc[0]
		}
	}
	if best < 0 {
		return nil
	}
	key := solicitRules[best].key
	return &key
}

// lastQuestion returns the final sentence ending in '?', or the whole text
// when there is no question mark.
func lastQuestion(text string) string {
	text = strings.TrimSpace(text)
	end := strings.LastIndex(text, "?")
	if end < 0 {
		return text
	}
	start := strings.LastIndexAny(text[:end], ".!?\n")
	return strings.TrimSpace(text[start+1 : end+1])
}
