package notify

import (
	"fmt"
	"strings"

	"cabo/internal/events"
)

// FormatMoney renders cents as "$1,234.50 USD".
func FormatMoney(cents int64, currency string) string {
	neg := cents < 0
	if neg {
		cents = -cents
	}
	whole := fmt.Sprintf("%d", cents/100)
	var b strings.Builder
	for i, r := range whole {
		if i > 0 && (len(whole)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(r)
	}
	sign := ""
	if neg {
		sign = "-"
	}
	return fmt.Sprintf("%s$%s.%02d %s", sign, b.String(), cents%100, strings.ToUpper(currency))
}

func FormatLead(p events.LeadEventPayload) string {
	var b strings.Builder
	fmt.Fprintf(&b, "New %s lead\n", strings.ReplaceAll(p.FormType, "_", " "))
	fmt.Fprintf(&b, "Name: %s\nEmail: %s\n", p.Name, p.Email)
	if p.Phone != "" {
		fmt.Fprintf(&b, "Phone: %s\n", p.Phone)
	}
	if p.Interest != "" {
		fmt.Fprintf(&b, "Interest: %s\n", p.Interest)
	}
	if p.Message != "" {
		msg := p.Message
		if len([]rune(msg)) > 300 {
			msg = string([]rune(msg)[:300]) + "..."
		}
		fmt.Fprintf(&b, "Message: %s\n", msg)
	}
	fmt.Fprintf(&b, "Lead ID: %s", p.LeadID)
	return b.String()
}

func FormatGuide(p events.GuideEventPayload) string {
	title := p.GuideTitle
	if title == "" {
		title = p.GuideSlug
	}
	return fmt.Sprintf("Guide downloaded: %s\nName: %s\nEmail: %s", title, p.Name, p.Email)
}

func FormatBooking(eventType string, p events.BookingEventPayload) string {
	head := "Booking update"
	switch eventType {
	case events.EventBookingCreated:
		head = "New booking request"
	case events.EventBookingPaid:
		head = "Deposit received"
	case events.EventBookingStatus:
		head = "Booking " + p.Status
	case events.EventBookingRefundDue:
		head = "REFUND deposit paid on " + p.Status + " booking"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%s %s\n", head, p.Reference)
	fmt.Fprintf(&b, "%s (%s)\n", p.ListingName, p.ListingType)
	if p.CheckOut.After(p.CheckIn) {
		fmt.Fprintf(&b, "Dates: %s - %s\n", p.CheckIn.Format("2006-01-02"), p.CheckOut.Format("2006-01-02"))
	} else {
		fmt.Fprintf(&b, "Date: %s\n", p.CheckIn.Format("2006-01-02"))
	}
	fmt.Fprintf(&b, "Guests: %d\nGuest: %s <%s>\n", p.Guests, p.Name, p.Email)
	fmt.Fprintf(&b, "Total: %s, deposit %s", FormatMoney(p.Total, p.Currency), FormatMoney(p.Deposit, p.Currency))
	if p.ChangedBy != "" {
		fmt.Fprintf(&b, "\nBy: %s", p.ChangedBy)
	}
	return b.String()
}
