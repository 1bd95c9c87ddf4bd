package forms

import (
	"strings"
	"time"

	"cabo/internal/models"
)

// GuideInput is the body accepted by POST /api/guide-submissions.
type GuideInput struct {
	GuideSlug   string `json:"guide_slug" binding:"required,max=160"`
	FirstName   string `json:"first_name" binding:"required,max=80"`
	Email       string `json:"email" binding:"required,email,max=255"`
	Phone       string `json:"phone" binding:"max=40"`
	UTMSource   string `json:"utm_source" binding:"max=120"`
	UTMMedium   string `json:"utm_medium" binding:"max=120"`
	UTMCampaign string `json:"utm_campaign" binding:"max=120"`
}

func (in *GuideInput) Normalize() {
	in.GuideSlug = strings.TrimSpace(strings.ToLower(in.GuideSlug))
	in.FirstName = strings.TrimSpace(in.FirstName)
	in.Email = strings.ToLower(strings.TrimSpace(in.Email))
	in.Phone = strings.TrimSpace(in.Phone)
}

func (in *GuideInput) ToSubmission() *models.GuideSubmission {
	return &models.GuideSubmission{
		GuideSlug:   in.GuideSlug,
		FirstName:   in.FirstName,
		Email:       in.Email,
		Phone:       in.Phone,
		UTMSource:   in.UTMSource,
		UTMMedium:   in.UTMMedium,
		UTMCampaign: in.UTMCampaign,
	}
}

// GuideBody builds the webhook body for a guide download, shaped like a
// guide_download lead so the scenario can route both the same way.
func GuideBody(sub *models.GuideSubmission, title string) WebhookBody {
	lead := &models.Lead{
		FormType:    models.FormGuideDownload,
		FirstName:   sub.FirstName,
		Email:       sub.Email,
		Phone:       sub.Phone,
		Interest:    title,
		UTMSource:   sub.UTMSource,
		UTMMedium:   sub.UTMMedium,
		UTMCampaign: sub.UTMCampaign,
		CreatedAt:   sub.CreatedAt,
	}
	if lead.CreatedAt.IsZero() {
		lead.CreatedAt = time.Now()
	}
	body := Body(lead)
	body.Fields["Guide Slug"] = sub.GuideSlug
	return body
}
