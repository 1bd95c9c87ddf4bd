package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestSlugify(t *testing.T) {
	cases := map[string]string{
		"Villa Paz, Pedregal":       "villa-paz-pedregal",
		"  Casa  Dorada  ":          "casa-dorada",
		"Cabo Pulmo Snorkel Tour!!": "cabo-pulmo-snorkel-tour",
		"Señor Frog's":              "senor-frog-s",
		"Playa Médano":              "playa-medano",
		"---":                       "",
	}
	for in, want := range cases {
		assert.Equal(t, want, Slugify(in), in)
	}
}

func TestContentFilterNormalize(t *testing.T) {
	f := ContentFilter{}.Normalize()
	assert.Equal(t, DefaultPageSize, f.Limit)

	f = ContentFilter{Limit: 500, Offset: -3}.Normalize()
	assert.Equal(t, MaxPageSize, f.Limit)
	assert.Equal(t, 0, f.Offset)
}

func TestBookingNights(t *testing.T) {
	in := time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC)
	b := Booking{CheckIn: in, CheckOut: in.AddDate(0, 0, 5)}
	assert.Equal(t, 5, b.Nights())

	b.CheckOut = in
	assert.Equal(t, 0, b.Nights())
}

func TestLeadHelpers(t *testing.T) {
	l := Lead{FirstName: "Ana"}
	assert.Equal(t, "Ana", l.FullName())
	l.LastName = "Ruiz"
	assert.Equal(t, "Ana Ruiz", l.FullName())

	assert.True(t, IsLeadStatus(LeadBooked))
	assert.False(t, IsLeadStatus("archived"))
}
