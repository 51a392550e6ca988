// Package extract turns raw message text into lead field values.
//
// Every extractor is a pure function of the message text and an explicit
// Context. A miss is reported as ok=false and is never an error.
package extract

import (
	"strings"

	"lead-engine/internal/domain"
)

// Context is what an extractor may know besides the message itself.
type Context struct {
	// Solicited is the field the assistant most recently asked about, if any.
	Solicited *domain.FieldKey
	// Fields is the lead as it stood before this message.
	Fields map[domain.FieldKey]domain.ExtractedField
}

func (c Context) solicited(key domain.FieldKey) bool {
	return c.Solicited != nil && *c.Solicited == key
}

func (c Context) known(key domain.FieldKey) (string, bool) {
	f, ok := c.Fields[key]
	if !ok || f.Value == "" {
		return "", false
	}
	return f.Value, true
}

type extractorFunc func(text string, c Context) (string, domain.Confidence, bool)

var extractors = map[domain.FieldKey]extractorFunc{
	domain.FieldName:            extractName,
	domain.FieldEmail:           extractEmail,
	domain.FieldPhone:           extractPhone,
	domain.FieldBuyingOrSelling: extractIntent,
	domain.FieldPropertyType:    extractPropertyType,
	domain.FieldPropertyAddress: extractAddress,
	domain.FieldBedrooms:        extractBedrooms,
	domain.FieldBathrooms:       extractBathrooms,
	domain.FieldTimeline:        extractTimeline,
}

// Extract runs the extractor for key against text. Unknown keys and misses
// both return ok=false.
func Extract(key domain.FieldKey, text string, c Context) (domain.ExtractedField, bool) {
	fn, ok := extractors[key]
	if !ok {
		return domain.ExtractedField{}, false
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return domain.ExtractedField{}, false
	}
	value, conf, ok := fn(text, c)
	if !ok || value == "" {
		return domain.ExtractedField{}, false
	}
	return domain.ExtractedField{Key: key, Value: value, Confidence: conf}, true
}

// All runs every extractor against text and returns the hits in schema order.
func All(text string, c Context) []domain.ExtractedField {
	var out []domain.ExtractedField
	for _, key := range domain.FieldKeys {
		if f, ok := Extract(key, text, c); ok {
			out = append(out, f)
		}
	}
	return out
}
