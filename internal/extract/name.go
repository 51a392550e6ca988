package extract

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"lead-engine/internal/domain"
)

const maxNameTokens = 4

var (
	// Unambiguous introductions; the captured name may be in any case.
	explicitNameRe = regexp.MustCompile(`(?i)\b(?:my name is|my name's|the name is|name's)\s+`)
	// Ambiguous introductions ("I'm looking...") only yield capitalised tokens.
	// "It's X" and "This is X" name places and things too often to count.
	introNameRe = regexp.MustCompile(`(?:\b[Ii]['’]m|\b[Ii] am|\b[Cc]all me)\s+`)
	nameTokenRe = regexp.MustCompile(`^\p{L}[\p{L}'’\-]*$`)
)

var nameStopWords = toSet(
	"a", "about", "also", "an", "and", "at", "back", "but", "buying", "calling", "currently",
	"excited", "fine", "for", "from", "glad", "good", "happy", "here", "hoping", "i", "im",
	"in", "interested", "is", "it", "just", "later", "looking", "moving", "my", "new", "no",
	"not", "now", "ok", "okay", "on", "or", "planning", "ready", "selling", "so", "soon",
	"sorry", "still", "thanks", "thank", "the", "thinking", "to", "today", "tomorrow",
	"tonight", "trying", "very", "wanting", "was", "with", "yes", "anytime", "whenever",
	"actually", "really", "well", "please", "sure", "i'm", "i’m", "i'd", "i'll", "i've",
)

// Words that on their own are never a name given in reply to a name prompt.
var bareReplyRejects = toSet(
	"hi", "hello", "hey", "there", "yes", "no", "yeah", "nope", "sure", "ok", "okay", "thanks",
	"thank", "you", "buy", "sell", "buying", "selling", "house", "home", "condo", "townhouse",
	"apartment", "asap", "soon", "maybe", "hmm", "what", "why", "who", "good", "morning",
	"afternoon", "evening",
)

func extractName(text string, c Context) (string, domain.Confidence, bool) {
	for _, loc := range explicitNameRe.FindAllStringIndex(text, -1) {
		if name, ok := captureName(text[loc[1]:], false); ok {
			return name, domain.ConfidenceHigh, true
		}
	}
	for _, loc := range introNameRe.FindAllStringIndex(text, -1) {
		if name, ok := captureName(text[loc[1]:], true); ok {
			return name, domain.ConfidenceHigh, true
		}
	}
	if !c.solicited(domain.FieldName) {
		return "", "", false
	}
	if strings.ContainsAny(text, "@0123456789") {
		return "", "", false
	}
	candidates := []string{text}
	if i := strings.IndexAny(text, ",;"); i > 0 {
		candidates = append(candidates, text[:i])
	}
	for _, cand := range candidates {
		if name, ok := bareName(cand, c); ok {
			return name, domain.ConfidenceLow, true
		}
	}
	return "", "", false
}

// captureName reads up to maxNameTokens name-like tokens from the start of
// rest, stopping at punctuation or a stop word.
func captureName(rest string, requireCapital bool) (string, bool) {
	var parts []string
	for _, tok := range strings.Fields(rest) {
		word := strings.TrimRight(tok, ",.!?;:")
		if !nameTokenRe.MatchString(word) {
			break
		}
		if nameStopWords[strings.ToLower(word)] {
			break
		}
		if requireCapital {
			r, _ := utf8.DecodeRuneInString(word)
			if !unicode.IsUpper(r) {
				break
			}
		}
		parts = append(parts, titleWord(word))
		if word != tok || len(parts) == maxNameTokens {
			break
		}
	}
	if len(parts) == 0 {
		return "", false
	}
	return strings.Join(parts, " "), true
}

func bareName(s string, c Context) (string, bool) {
	s = strings.TrimRight(strings.TrimSpace(s), ".!")
	tokens := strings.Fields(s)
	if len(tokens) == 0 || len(tokens) > maxNameTokens {
		return "", false
	}
	for i, tok := range tokens {
		lower := strings.ToLower(tok)
		if !nameTokenRe.MatchString(tok) || bareReplyRejects[lower] || nameStopWords[lower] {
			return "", false
		}
		tokens[i] = titleWord(tok)
	}
	name := strings.Join(tokens, " ")
	// A reply that repeats a value already captured for another field is
	// an answer to a different question.
	for _, key := range domain.FieldKeys {
		if key == domain.FieldName {
			continue
		}
		if v, ok := c.known(key); ok && strings.EqualFold(v, name) {
			return "", false
		}
	}
	return name, true
}

func titleWord(w string) string {
	r, size := utf8.DecodeRuneInString(w)
	return string(unicode.ToUpper(r)) + w[size:]
}

func toSet(words ...string) map[string]bool {
	out := make(map[string]bool, len(words))
	for _, w := range words {
		out[w] = true
	}
	return out
}
