package extract

import (
	"regexp"

	"lead-engine/internal/domain"
)

var (
	buyingRe = regexp.MustCompile(`(?i)\b(?:buy|buys|buying|buyer|buyers|purchase|purchases|purchasing|house[\s\-]hunting|home[\s\-]hunting|looking for a (?:home|house|place|condo|property|townhouse))\b`)
	sellingRe = regexp.MustCompile(`(?i)\b(?:sell|sells|selling|seller|sellers|list(?:ing)? (?:my|our|the)|put (?:\w+\s+){0,2}on the market)\b`)
)

// extractIntent classifies the message as buying or selling. A message that
// mentions both or neither is left unset.
func extractIntent(text string, _ Context) (string, domain.Confidence, bool) {
	buying := buyingRe.MatchString(text)
	selling := sellingRe.MatchString(text)
	switch {
	case buying && !selling:
		return domain.IntentBuying, domain.ConfidenceHigh, true
	case selling && !buying:
		return domain.IntentSelling, domain.ConfidenceHigh, true
	}
	return "", "", false
}
