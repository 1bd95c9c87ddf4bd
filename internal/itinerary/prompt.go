package itinerary

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

const SystemPrompt = "You are a Cabo San Lucas travel concierge. Write practical day-by-day itineraries " +
	"using plain text headings (Day 1, Day 2, ...). Prefer the listed partner adventures and restaurants " +
	"when they fit the traveler's interests, and keep each day realistic for the region."

type Request struct {
	Days      int      `json:"days" binding:"required,min=1,max=14"`
	Travelers int      `json:"travelers" binding:"omitempty,min=1,max=50"`
	Interests []string `json:"interests" binding:"max=10,dive,max=60"`
	Budget    string   `json:"budget" binding:"omitempty,oneof=budget moderate luxury"`
	Month     string   `json:"month" binding:"max=20"`
	Children  bool     `json:"children"`
}

// Validate mirrors the binding tags for callers outside gin.
func (r Request) Validate() error {
	if r.Days < 1 || r.Days > 14 {
		return errors.New("days must be between 1 and 14")
	}
	if r.Travelers < 0 || r.Travelers > 50 {
		return errors.New("travelers must be between 1 and 50")
	}
	if len(r.Interests) > 10 {
		return errors.New("at most 10 interests")
	}
	if r.Month != "" && !isMonth(r.Month) {
		return fmt.Errorf("unknown month %q", r.Month)
	}
	return nil
}

func isMonth(s string) bool {
	for m := time.January; m <= time.December; m++ {
		if strings.EqualFold(m.String(), s) || strings.EqualFold(m.String()[:3], s) {
			return true
		}
	}
	return false
}

// BuildPrompt lists the request and the partner catalogue for the model.
func BuildPrompt(r Request, adventures, restaurants []string) string {
	var b strings.Builder
	travelers := r.Travelers
	if travelers == 0 {
		travelers = 2
	}
	fmt.Fprintf(&b, "Plan a %d-day trip to Cabo San Lucas for %d traveler(s)", r.Days, travelers)
	if r.Children {
		b.WriteString(" including children")
	}
	b.WriteString(".\n")
	if r.Month != "" {
		fmt.Fprintf(&b, "Travel month: %s.\n", r.Month)
	}
	if r.Budget != "" {
		fmt.Fprintf(&b, "Budget level: %s.\n", r.Budget)
	}
	if len(r.Interests) > 0 {
		fmt.Fprintf(&b, "Interests: %s.\n", strings.Join(r.Interests, ", "))
	}
	if len(adventures) > 0 {
		fmt.Fprintf(&b, "Partner adventures: %s.\n", strings.Join(adventures, "; "))
	}
	if len(restaurants) > 0 {
		fmt.Fprintf(&b, "Partner restaurants: %s.\n", strings.Join(restaurants, "; "))
	}
	b.WriteString("Include one dinner suggestion per day.")
	return b.String()
}
