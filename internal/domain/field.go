package domain

import "fmt"

// FieldKey names one slot of the lead record. The set of keys is closed.
type FieldKey string

const (
	FieldName            FieldKey = "name"
	FieldEmail           FieldKey = "email"
	FieldPhone           FieldKey = "phone"
	FieldBuyingOrSelling FieldKey = "buying_or_selling"
	FieldPropertyType    FieldKey = "property_type"
	FieldPropertyAddress FieldKey = "property_address"
	FieldBedrooms        FieldKey = "bedrooms"
	FieldBathrooms       FieldKey = "bathrooms"
	FieldTimeline        FieldKey = "timeline"
)

// FieldKeys lists every schema key in canonical order.
var FieldKeys = []FieldKey{
	FieldName,
	FieldEmail,
	FieldPhone,
	FieldBuyingOrSelling,
	FieldPropertyType,
	FieldPropertyAddress,
	FieldBedrooms,
	FieldBathrooms,
	FieldTimeline,
}

// Valid reports whether k belongs to the schema.
func (k FieldKey) Valid() bool {
	for _, known := range FieldKeys {
		if k == known {
			return true
		}
	}
	return false
}

// Label is the human readable form used in action descriptions.
func (k FieldKey) Label() string {
	switch k {
	case FieldName:
		return "Name"
	case FieldEmail:
		return "Email"
	case FieldPhone:
		return "Phone"
	case FieldBuyingOrSelling:
		return "Buying or selling"
	case FieldPropertyType:
		return "Property type"
	case FieldPropertyAddress:
		return "Property address"
	case FieldBedrooms:
		return "Bedrooms"
	case FieldBathrooms:
		return "Bathrooms"
	case FieldTimeline:
		return "Timeline"
	}
	return string(k)
}

// ParseFieldKey converts s to a FieldKey, rejecting keys outside the schema.
func ParseFieldKey(s string) (FieldKey, error) {
	k := FieldKey(s)
	if !k.Valid() {
		return "", fmt.Errorf("domain: unknown field key %q", s)
	}
	return k, nil
}

// Confidence grades how much an extraction can be trusted.
type Confidence string

const (
	ConfidenceHigh Confidence = "high"
	ConfidenceLow  Confidence = "low"
)

// Outranks reports whether c is strictly more trusted than other.
func (c Confidence) Outranks(other Confidence) bool {
	return c == ConfidenceHigh && other == ConfidenceLow
}

// ExtractedField is the current value of one lead field.
type ExtractedField struct {
	Key        FieldKey   `json:"key"`
	Value      string     `json:"value"`
	SetAtTurn  int        `json:"set_at_turn"`
	Confidence Confidence `json:"confidence"`
}

// ChangeOutcome records how an extraction was merged into the lead.
type ChangeOutcome string

const (
	OutcomeSet         ChangeOutcome = "set"
	OutcomeOverwritten ChangeOutcome = "overwritten"
	OutcomeConfirmed   ChangeOutcome = "confirmed"
	OutcomeRejected    ChangeOutcome = "rejected"
)

// FieldChange is one audit entry for an extraction applied to the lead.
type FieldChange struct {
	Key        FieldKey      `json:"key"`
	Previous   string        `json:"previous,omitempty"`
	Value      string        `json:"value"`
	Turn       int           `json:"turn"`
	Confidence Confidence    `json:"confidence"`
	Outcome    ChangeOutcome `json:"outcome"`
}

// Canonical timeline buckets, ordered from most to least urgent.
const (
	TimelineImmediate = "immediate"
	TimelineShortTerm = "1-3 months"
	TimelineMidTerm   = "3-12 months"
	TimelineExploring = "just exploring"
)

// Values of the buying_or_selling field.
const (
	IntentBuying  = "buying"
	IntentSelling = "selling"
)
