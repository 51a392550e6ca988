package extract

import (
	"testing"

	"github.com/stretchr/testify/require"

	"lead-engine/internal/domain"
)

func asked(key domain.FieldKey) Context {
	return Context{Solicited: &key}
}

func requireHit(t *testing.T, key domain.FieldKey, text string, c Context, value string, conf domain.Confidence) {
	t.Helper()
	f, ok := Extract(key, text, c)
	require.True(t, ok, "expected %s in %q", key, text)
	require.Equal(t, key, f.Key)
	require.Equal(t, value, f.Value)
	require.Equal(t, conf, f.Confidence)
}

func requireMiss(t *testing.T, key domain.FieldKey, text string, c Context) {
	t.Helper()
	f, ok := Extract(key, text, c)
	require.False(t, ok, "unexpected %s=%q in %q", key, f.Value, text)
}

func TestExtractName(t *testing.T) {
	cases := []struct {
		text string
		want string
	}{
		{"Hi, I'm Jane Doe, my email is jane@example.com", "Jane Doe"},
		{"my name is jane doe and I want to sell", "Jane Doe"},
		{"Hello! I am Robert.", "Robert"},
		{"I'm looking to sell. I'm Maria Lopez", "Maria Lopez"},
		{"Call me Sam", "Sam"},
		{"My name's Anne-Marie O'Neil", "Anne-Marie O'Neil"},
	}
	for _, tc := range cases {
		t.Run(tc.text, func(t *testing.T) {
			requireHit(t, domain.FieldName, tc.text, Context{}, tc.want, domain.ConfidenceHigh)
		})
	}
}

func TestExtractName_Rejects(t *testing.T) {
	for _, text := range []string{
		"I'm looking to sell",
		"I am interested in a condo",
		"It's a 3 bedroom house at 12 Elm Street",
		"call me tomorrow",
		"My phone is (555) 867-5309",
		"Jane Doe",
		"Thanks! It's Maple Grove, near the school",
		"It's Downtown",
		"This is Great news",
	} {
		t.Run(text, func(t *testing.T) {
			requireMiss(t, domain.FieldName, text, Context{})
		})
	}
}

func TestExtractName_BareReplyToPrompt(t *testing.T) {
	requireHit(t, domain.FieldName, "jane doe", asked(domain.FieldName), "Jane Doe", domain.ConfidenceLow)
	requireHit(t, domain.FieldName, "Jane, and I'd like to buy", asked(domain.FieldName), "Jane", domain.ConfidenceLow)

	requireMiss(t, domain.FieldName, "hello there", asked(domain.FieldName))
	requireMiss(t, domain.FieldName, "jane@example.com", asked(domain.FieldName))
	requireMiss(t, domain.FieldName, "why do you need that information from me", asked(domain.FieldName))

	c := asked(domain.FieldName)
	c.Fields = map[domain.FieldKey]domain.ExtractedField{
		domain.FieldPropertyType: {Key: domain.FieldPropertyType, Value: "Ranch Style"},
	}
	requireMiss(t, domain.FieldName, "ranch style", c)
}

func TestExtractEmail(t *testing.T) {
	requireHit(t, domain.FieldEmail, "my email is Jane@Example.com.", Context{}, "jane@example.com", domain.ConfidenceHigh)
	requireHit(t, domain.FieldEmail, "actually my email is jane.doe@newmail.com", Context{}, "jane.doe@newmail.com", domain.ConfidenceHigh)
	requireHit(t, domain.FieldEmail, "a@b.io or c@d.io", Context{}, "a@b.io", domain.ConfidenceHigh)
	requireMiss(t, domain.FieldEmail, "jane at example dot com", Context{})
	requireMiss(t, domain.FieldEmail, "user@localhost", Context{})
}

func TestExtractPhone(t *testing.T) {
	cases := []struct {
		text string
		c    Context
		want string
		conf domain.Confidence
	}{
		{"My phone is (555) 867-5309 and I'm looking to sell", Context{}, "5558675309", domain.ConfidenceHigh},
		{"555.867.5309", Context{}, "5558675309", domain.ConfidenceHigh},
		{"call +1 555 867 5309", Context{}, "15558675309", domain.ConfidenceHigh},
		{"reach me at +44 20 7946 0958", Context{}, "442079460958", domain.ConfidenceHigh},
		{"867-5309", Context{}, "8675309", domain.ConfidenceLow},
		{"867-5309", asked(domain.FieldPhone), "8675309", domain.ConfidenceHigh},
		{"my number is 020 7946 0958", Context{}, "02079460958", domain.ConfidenceHigh},
		{"call 442079460958", Context{}, "442079460958", domain.ConfidenceHigh},
		{"phone 12345678", Context{}, "12345678", domain.ConfidenceLow},
		{"12345678", asked(domain.FieldPhone), "12345678", domain.ConfidenceHigh},
		{"reach me on 0412 345 678", Context{}, "0412345678", domain.ConfidenceHigh},
		{"office 555-0100, cell 555 867 5309 2", Context{}, "5558675309", domain.ConfidenceHigh},
	}
	for _, tc := range cases {
		t.Run(tc.text, func(t *testing.T) {
			requireHit(t, domain.FieldPhone, tc.text, tc.c, tc.want, tc.conf)
		})
	}
}

func TestExtractPhone_Misses(t *testing.T) {
	for _, text := range []string{
		"It's a 3 bedroom house at 12 Elm Street",
		"my email is jane1234567@example.com",
		"budget around $450,000",
		"no phone please",
	} {
		t.Run(text, func(t *testing.T) {
			requireMiss(t, domain.FieldPhone, text, Context{})
		})
	}
}

func TestNormalizePhone(t *testing.T) {
	require.Equal(t, "5558675309", NormalizePhone("(555) 867-5309"))
	require.Equal(t, "15558675309", NormalizePhone("+1.555.867.5309"))
	require.Empty(t, NormalizePhone("n/a"))
}

func TestExtractIntent(t *testing.T) {
	requireHit(t, domain.FieldBuyingOrSelling, "I'm looking to sell", Context{}, domain.IntentSelling, domain.ConfidenceHigh)
	requireHit(t, domain.FieldBuyingOrSelling, "We want to list our house", Context{}, domain.IntentSelling, domain.ConfidenceHigh)
	requireHit(t, domain.FieldBuyingOrSelling, "thinking of putting it on the market, can we put my condo on the market", Context{}, domain.IntentSelling, domain.ConfidenceHigh)
	requireHit(t, domain.FieldBuyingOrSelling, "first time buyer here", Context{}, domain.IntentBuying, domain.ConfidenceHigh)
	requireHit(t, domain.FieldBuyingOrSelling, "we'd like to purchase something", Context{}, domain.IntentBuying, domain.ConfidenceHigh)
	requireHit(t, domain.FieldBuyingOrSelling, "Buy", asked(domain.FieldBuyingOrSelling), domain.IntentBuying, domain.ConfidenceHigh)

	requireMiss(t, domain.FieldBuyingOrSelling, "I want to sell my condo and buy a house", Context{})
	requireMiss(t, domain.FieldBuyingOrSelling, "hello", Context{})
	requireMiss(t, domain.FieldBuyingOrSelling, "the seller's market is hot, should I buy?", Context{})
}

func TestExtractPropertyType(t *testing.T) {
	cases := []struct {
		text string
		want string
		conf domain.Confidence
	}{
		{"It's a 3 bedroom house at 12 Elm Street", "house", domain.ConfidenceHigh},
		{"it's a condo", "condo", domain.ConfidenceHigh},
		{"a townhome near the park", "townhouse", domain.ConfidenceHigh},
		{"we own a duplex", "multi-family", domain.ConfidenceHigh},
		{"a manufactured home", "mobile home", domain.ConfidenceHigh},
		{"single-family please", "house", domain.ConfidenceHigh},
		{"I want to sell my home", "house", domain.ConfidenceLow},
	}
	for _, tc := range cases {
		t.Run(tc.text, func(t *testing.T) {
			requireHit(t, domain.FieldPropertyType, tc.text, Context{}, tc.want, tc.conf)
		})
	}
	requireHit(t, domain.FieldPropertyType, "just a regular home", asked(domain.FieldPropertyType), "house", domain.ConfidenceHigh)
	requireMiss(t, domain.FieldPropertyType, "I'm house hunting", Context{})
	requireMiss(t, domain.FieldPropertyType, "hello", Context{})
}

func TestExtractAddress(t *testing.T) {
	requireHit(t, domain.FieldPropertyAddress, "It's a 3 bedroom house at 12 Elm Street", Context{}, "12 Elm Street", domain.ConfidenceHigh)
	requireHit(t, domain.FieldPropertyAddress, "the place is 4521 North Oak Ridge Blvd. in Austin", Context{}, "4521 North Oak Ridge Blvd", domain.ConfidenceHigh)
	requireHit(t, domain.FieldPropertyAddress, "8 Rue Cler, Paris", asked(domain.FieldPropertyAddress), "8 Rue Cler", domain.ConfidenceLow)

	requireMiss(t, domain.FieldPropertyAddress, "8 Rue Cler, Paris", Context{})
	requireMiss(t, domain.FieldPropertyAddress, "3 bedrooms and 2 baths", Context{})
}

func TestExtractRoomCounts(t *testing.T) {
	requireHit(t, domain.FieldBedrooms, "It's a 3 bedroom house", Context{}, "3", domain.ConfidenceHigh)
	requireHit(t, domain.FieldBedrooms, "four beds", Context{}, "4", domain.ConfidenceHigh)
	requireHit(t, domain.FieldBedrooms, "a 2br condo", Context{}, "2", domain.ConfidenceHigh)
	requireHit(t, domain.FieldBedrooms, "3", asked(domain.FieldBedrooms), "3", domain.ConfidenceLow)
	requireMiss(t, domain.FieldBedrooms, "3", asked(domain.FieldBathrooms))
	requireMiss(t, domain.FieldBedrooms, "1025 Bedford Ave", Context{})

	requireHit(t, domain.FieldBathrooms, "2.5 baths", Context{}, "2.5", domain.ConfidenceHigh)
	requireHit(t, domain.FieldBathrooms, "two and a half bathrooms", Context{}, "2.5", domain.ConfidenceHigh)
	requireHit(t, domain.FieldBathrooms, "3 bed 2 bath", Context{}, "2", domain.ConfidenceHigh)
	requireHit(t, domain.FieldBathrooms, "Two.", asked(domain.FieldBathrooms), "2", domain.ConfidenceLow)
}

func TestExtractTimeline(t *testing.T) {
	cases := []struct {
		text string
		want string
	}{
		{"we need to move ASAP", domain.TimelineImmediate},
		{"hoping to close this month", domain.TimelineImmediate},
		{"within 2 weeks", domain.TimelineImmediate},
		{"in the next 60 days", domain.TimelineShortTerm},
		{"probably next month", domain.TimelineShortTerm},
		{"in about six months", domain.TimelineMidTerm},
		{"sometime within a year", domain.TimelineMidTerm},
		{"in 3 years", domain.TimelineExploring},
		{"no rush, just exploring", domain.TimelineExploring},
	}
	for _, tc := range cases {
		t.Run(tc.text, func(t *testing.T) {
			requireHit(t, domain.FieldTimeline, tc.text, Context{}, tc.want, domain.ConfidenceHigh)
		})
	}
	requireMiss(t, domain.FieldTimeline, "I'm looking to sell", Context{})
}

func TestExtractTimeline_VagueAnswersNeedATimelineQuestion(t *testing.T) {
	requireMiss(t, domain.FieldTimeline, "not sure how many bathrooms", Context{})
	requireMiss(t, domain.FieldTimeline, "I'll send the photos soon", Context{})
	requireMiss(t, domain.FieldTimeline, "just curious what it's worth", asked(domain.FieldBathrooms))

	requireHit(t, domain.FieldTimeline, "not sure", asked(domain.FieldTimeline), domain.TimelineExploring, domain.ConfidenceHigh)
	requireHit(t, domain.FieldTimeline, "soon I hope", asked(domain.FieldTimeline), domain.TimelineShortTerm, domain.ConfidenceHigh)
	requireHit(t, domain.FieldTimeline, "as soon as possible", Context{}, domain.TimelineImmediate, domain.ConfidenceHigh)
}

func TestTimelineForDays(t *testing.T) {
	require.Equal(t, domain.TimelineImmediate, TimelineForDays(30))
	require.Equal(t, domain.TimelineShortTerm, TimelineForDays(90))
	require.Equal(t, domain.TimelineMidTerm, TimelineForDays(365))
	require.Equal(t, domain.TimelineExploring, TimelineForDays(400))
}

func TestAll_CapturesEveryVolunteeredFact(t *testing.T) {
	got := All("It's a 3 bedroom house at 12 Elm Street", Context{})
	values := map[domain.FieldKey]string{}
	for _, f := range got {
		values[f.Key] = f.Value
	}
	require.Equal(t, map[domain.FieldKey]string{
		domain.FieldPropertyType:    "house",
		domain.FieldPropertyAddress: "12 Elm Street",
		domain.FieldBedrooms:        "3",
	}, values)
}

func TestExtract_NeverFailsOnJunk(t *testing.T) {
	for _, text := range []string{"", "   ", "@@@", "((((", "🙂🙂", "+", "?"} {
		require.Empty(t, All(text, asked(domain.FieldName)))
	}
	_, ok := Extract(domain.FieldKey("budget"), "500k", Context{})
	require.False(t, ok)
}

func TestSolicited(t *testing.T) {
	cases := []struct {
		text string
		want domain.FieldKey
	}{
		{"Hi! I'm your assistant. What's your name?", domain.FieldName},
		{"Nice to meet you, Jane! What's the best phone number to reach you?", domain.FieldPhone},
		{"Thanks for your name. Could you share your email address?", domain.FieldEmail},
		{"Great. Are you looking to buy or sell?", domain.FieldBuyingOrSelling},
		{"What's the address of the property?", domain.FieldPropertyAddress},
		{"What kind of home is it?", domain.FieldPropertyType},
		{"How many bedrooms does it have?", domain.FieldBedrooms},
		{"And the number of bathrooms?", domain.FieldBathrooms},
		{"When are you hoping to move?", domain.FieldTimeline},
		{"May I have your name and email?", domain.FieldName},
	}
	for _, tc := range cases {
		t.Run(tc.text, func(t *testing.T) {
			got := Solicited(tc.text)
			require.NotNil(t, got)
			require.Equal(t, tc.want, *got)
		})
	}
	require.Nil(t, Solicited("Thanks, that's everything I need!"))
	require.Nil(t, Solicited(""))
}
