package lead

import (
	"math"
	"slices"

	"lead-engine/internal/domain"
)

// Slot is a required part of the lead. It is satisfied when any of its keys
// holds a value.
type Slot struct {
	Name  string
	Label string
	Keys  []domain.FieldKey

	// Low-confidence values of these keys are guesses and leave the slot open.
	Guessable []domain.FieldKey
}

// RequiredSlots must all be satisfied for a conversation to be complete.
var RequiredSlots = []Slot{
	{Name: "name", Label: "Name", Keys: []domain.FieldKey{domain.FieldName}},
	{Name: "email", Label: "Email", Keys: []domain.FieldKey{domain.FieldEmail}},
	{Name: "phone", Label: "Phone", Keys: []domain.FieldKey{domain.FieldPhone}},
	{Name: "buying_or_selling", Label: "Buying or selling", Keys: []domain.FieldKey{domain.FieldBuyingOrSelling}},
	{Name: "property", Label: "Property type or address", Keys: []domain.FieldKey{domain.FieldPropertyType, domain.FieldPropertyAddress}, Guessable: []domain.FieldKey{domain.FieldPropertyType}},
}

// Optional details asked for once every required slot is filled.
var optionalFields = []domain.FieldKey{
	domain.FieldTimeline,
	domain.FieldBedrooms,
	domain.FieldBathrooms,
}

func (s Slot) satisfied(fields map[domain.FieldKey]domain.ExtractedField) bool {
	for _, k := range s.Keys {
		if !isSet(fields, k) {
			continue
		}
		if fields[k].Confidence == domain.ConfidenceLow && slices.Contains(s.Guessable, k) {
			continue
		}
		return true
	}
	return false
}

// Completion is the derived completeness of a lead.
type Completion struct {
	Percentage float64
	Missing    []Slot
}

// Complete reports whether every required slot is satisfied.
func (c Completion) Complete() bool {
	return len(c.Missing) == 0
}

// MissingLabels returns the human readable names of the missing slots.
func (c Completion) MissingLabels() []string {
	out := make([]string, 0, len(c.Missing))
	for _, s := range c.Missing {
		out = append(out, s.Label)
	}
	return out
}

// MissingNames returns the machine names of the missing slots.
func (c Completion) MissingNames() []string {
	out := make([]string, 0, len(c.Missing))
	for _, s := range c.Missing {
		out = append(out, s.Name)
	}
	return out
}

// Track computes completeness as the share of satisfied required slots,
// rounded to one decimal.
func Track(fields map[domain.FieldKey]domain.ExtractedField) Completion {
	var c Completion
	for _, s := range RequiredSlots {
		if !s.satisfied(fields) {
			c.Missing = append(c.Missing, s)
		}
	}
	done := len(RequiredSlots) - len(c.Missing)
	c.Percentage = math.Round(float64(done)/float64(len(RequiredSlots))*1000) / 10
	return c
}

// NextField returns the field the assistant should ask about next: the first
// missing required slot, then optional details, or nil when nothing is left.
func NextField(fields map[domain.FieldKey]domain.ExtractedField) *domain.FieldKey {
	for _, s := range RequiredSlots {
		if !s.satisfied(fields) {
			k := s.Keys[0]
			return &k
		}
	}
	for _, k := range optionalFields {
		if !isSet(fields, k) {
			k := k
			return &k
		}
	}
	return nil
}

func isSet(fields map[domain.FieldKey]domain.ExtractedField, key domain.FieldKey) bool {
	f, ok := fields[key]
	return ok && f.Value != ""
}
