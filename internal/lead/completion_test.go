package lead

import (
	"testing"

	"github.com/stretchr/testify/require"

	"lead-engine/internal/domain"
)

func fields(kv ...string) map[domain.FieldKey]domain.ExtractedField {
	out := make(map[domain.FieldKey]domain.ExtractedField, len(kv)/2)
	for i := 0; i+1 < len(kv); i += 2 {
		k := domain.FieldKey(kv[i])
		out[k] = domain.ExtractedField{Key: k, Value: kv[i+1], SetAtTurn: 1, Confidence: domain.ConfidenceHigh}
	}
	return out
}

func completeSeller() map[domain.FieldKey]domain.ExtractedField {
	return fields(
		"name", "Jane Doe",
		"email", "jane@example.com",
		"phone", "5558675309",
		"buying_or_selling", "selling",
		"property_type", "house",
		"property_address", "12 Elm Street",
		"bedrooms", "3",
	)
}

func TestTrack(t *testing.T) {
	cases := []struct {
		name    string
		fields  map[domain.FieldKey]domain.ExtractedField
		pct     float64
		missing []string
	}{
		{"empty", nil, 0, []string{"name", "email", "phone", "buying_or_selling", "property"}},
		{"name and email", fields("name", "Jane Doe", "email", "jane@example.com"), 40, []string{"phone", "buying_or_selling", "property"}},
		{"address satisfies property", fields("property_address", "12 Elm Street"), 20, []string{"name", "email", "phone", "buying_or_selling"}},
		{"optional fields do not count", fields("bedrooms", "3", "timeline", "immediate"), 0, []string{"name", "email", "phone", "buying_or_selling", "property"}},
		{"blank value is unset", fields("name", ""), 0, []string{"name", "email", "phone", "buying_or_selling", "property"}},
		{"complete", completeSeller(), 100, []string{}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			c := Track(tc.fields)
			require.Equal(t, tc.pct, c.Percentage)
			require.Equal(t, tc.missing, c.MissingNames())
			require.Equal(t, len(tc.missing) == 0, c.Complete())
		})
	}
}

func TestTrack_GuessedPropertyTypeLeavesSlotOpen(t *testing.T) {
	f := completeSeller()
	delete(f, domain.FieldPropertyAddress)
	f[domain.FieldPropertyType] = domain.ExtractedField{Key: domain.FieldPropertyType, Value: "house", SetAtTurn: 1, Confidence: domain.ConfidenceLow}

	c := Track(f)
	require.False(t, c.Complete())
	require.Equal(t, []string{"property"}, c.MissingNames())
	require.Equal(t, 80.0, c.Percentage)
	require.Equal(t, domain.FieldPropertyType, *NextField(f))

	f[domain.FieldPropertyAddress] = domain.ExtractedField{Key: domain.FieldPropertyAddress, Value: "8 Rue Cler", SetAtTurn: 2, Confidence: domain.ConfidenceLow}
	require.True(t, Track(f).Complete())
}

func TestTrack_MissingLabels(t *testing.T) {
	c := Track(fields("email", "jane@example.com"))
	require.Equal(t, []string{"Name", "Phone", "Buying or selling", "Property type or address"}, c.MissingLabels())
}

func TestNextField(t *testing.T) {
	cases := []struct {
		name   string
		fields map[domain.FieldKey]domain.ExtractedField
		want   domain.FieldKey
	}{
		{"starts with name", nil, domain.FieldName},
		{"skips known", fields("name", "Jane", "email", "j@x.io"), domain.FieldPhone},
		{"property slot asks for type", fields("name", "Jane", "email", "j@x.io", "phone", "5551234567", "buying_or_selling", "buying"), domain.FieldPropertyType},
		{"optional after required", completeSeller(), domain.FieldTimeline},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := NextField(tc.fields)
			require.NotNil(t, got)
			require.Equal(t, tc.want, *got)
		})
	}

	all := completeSeller()
	all[domain.FieldTimeline] = domain.ExtractedField{Key: domain.FieldTimeline, Value: "immediate"}
	all[domain.FieldBathrooms] = domain.ExtractedField{Key: domain.FieldBathrooms, Value: "2"}
	require.Nil(t, NextField(all))
}
