package forms

import (
	"encoding/json"
	"strconv"
	"strings"
	"time"

	"cabo/internal/models"
)

// WebhookBody is what the automation scenario receives.
type WebhookBody struct {
	Form   string            `json:"form"`
	LeadID string            `json:"lead_id"`
	Fields map[string]string `json:"fields"`
}

// MapFields renames a lead into the Airtable column names used by the
// Make.com scenario. Empty values are left out.
func MapFields(l *models.Lead) map[string]string {
	out := map[string]string{}
	put := func(k, v string) {
		if v = strings.TrimSpace(v); v != "" {
			out[k] = v
		}
	}
	putInt := func(k string, n int) {
		if n > 0 {
			out[k] = strconv.Itoa(n)
		}
	}

	put("First Name", l.FirstName)
	put("Last Name", l.LastName)
	put("Email", l.Email)
	put("Phone", l.Phone)
	put("Form", l.FormType)
	put("Message", l.Message)
	put("Lead ID", l.PublicID)
	if !l.CreatedAt.IsZero() {
		put("Submitted At", l.CreatedAt.UTC().Format(time.RFC3339))
	}
	put("UTM Source", l.UTMSource)
	put("UTM Medium", l.UTMMedium)
	put("UTM Campaign", l.UTMCampaign)

	group := l.Adults + l.Children
	switch l.FormType {
	case models.FormVillaInquiry:
		put("Villa", l.Interest)
		put("Arrival Date", date(l.ArrivalDate))
		put("Departure Date", date(l.DepartureDate))
		if l.ArrivalDate != nil && l.DepartureDate != nil {
			putInt("Nights", int(l.DepartureDate.Sub(*l.ArrivalDate).Hours()/24))
		}
		putInt("Group Size", group)
	case models.FormFamilyTrip:
		putInt("Adults", l.Adults)
		putInt("Number of Children", l.Children)
		put("Children Ages", joinAges(l.ChildrenAges))
		putInt("Family Size", group)
		put("Arrival Date", date(l.ArrivalDate))
		put("Departure Date", date(l.DepartureDate))
	case models.FormAdventure:
		put("Adventure", l.Interest)
		put("Preferred Date", date(l.ArrivalDate))
		putInt("Group Size", group)
	case models.FormWedding:
		put("Wedding Date", date(l.ArrivalDate))
		putInt("Guest Count", group)
		put("Budget", l.Budget)
	case models.FormConcierge:
		put("Services Requested", l.Interest)
		put("Arrival Date", date(l.ArrivalDate))
		put("Departure Date", date(l.DepartureDate))
	case models.FormGuideDownload:
		put("Guide", l.Interest)
	default:
		put("Interest", l.Interest)
	}
	if l.FormType != models.FormWedding {
		put("Budget", l.Budget)
	}

	for k, v := range l.Extra {
		if _, taken := out[k]; taken {
			continue
		}
		if s, ok := v.(string); ok {
			put(k, s)
		}
	}
	return out
}

// Body builds the webhook body for a stored lead.
func Body(l *models.Lead) WebhookBody {
	return WebhookBody{Form: l.FormType, LeadID: l.PublicID, Fields: MapFields(l)}
}

func date(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.Format(dateLayout)
}

func joinAges(raw []byte) string {
	if len(raw) == 0 {
		return ""
	}
	var ages []int
	if err := json.Unmarshal(raw, &ages); err != nil {
		return ""
	}
	parts := make([]string, len(ages))
	for i, a := range ages {
		parts[i] = strconv.Itoa(a)
	}
	return strings.Join(parts, ", ")
}
