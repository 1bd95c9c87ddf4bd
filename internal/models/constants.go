package models

const (
	StatusPending   = "pending"
	StatusConfirmed = "confirmed"
	StatusCancelled = "cancelled"
	StatusCompleted = "completed"
)

const (
	LeadNew       = "new"
	LeadContacted = "contacted"
	LeadQualified = "qualified"
	LeadBooked    = "booked"
	LeadClosed    = "closed"
)

var LeadStatuses = []string{LeadNew, LeadContacted, LeadQualified, LeadBooked, LeadClosed}

const (
	OutboxPending   = "pending"
	OutboxRetry     = "retry"
	OutboxCompleted = "completed"
	OutboxFailed    = "failed"
)

const (
	RoleAdmin = "admin"
)

// IsLeadStatus reports whether s is a known lead status.
func IsLeadStatus(s string) bool {
	for _, st := range LeadStatuses {
		if st == s {
			return true
		}
	}
	return false
}
