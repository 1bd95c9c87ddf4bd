package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"cabo/internal/forms"
	"cabo/internal/itinerary"
	"cabo/internal/service"

	"github.com/gin-gonic/gin"
)

const (
	maxJSONBody    = 1 << 20
	maxWebhookBody = 1 << 16
)

// decodeJSON reads the body without running binding tags, so validation
// errors come back from the services as field maps.
func decodeJSON(c *gin.Context, v interface{}) bool {
	body := http.MaxBytesReader(c.Writer, c.Request.Body, maxJSONBody)
	if err := json.NewDecoder(body).Decode(v); err != nil {
		writeError(c, http.StatusBadRequest, "invalid JSON body")
		return false
	}
	return true
}

func (s *HTTPServer) submitLead(c *gin.Context) {
	var in forms.LeadInput
	if !decodeJSON(c, &in) {
		return
	}
	lead, err := s.deps.Leads.Submit(c.Request.Context(), &in)
	if err != nil {
		respondError(c, s.log, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"lead_id": lead.PublicID, "status": "received"})
}

func (s *HTTPServer) listGuides(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"guides": s.deps.Guides.Catalog()})
}

func (s *HTTPServer) submitGuide(c *gin.Context) {
	var in forms.GuideInput
	if !decodeJSON(c, &in) {
		return
	}
	guide, err := s.deps.Guides.Submit(c.Request.Context(), &in)
	if err != nil {
		respondError(c, s.log, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"guide": guide.Slug, "title": guide.Title, "download_url": guide.DownloadURL})
}

func (s *HTTPServer) createBooking(c *gin.Context) {
	var in service.BookingInput
	if !decodeJSON(c, &in) {
		return
	}
	res, err := s.deps.Bookings.Create(c.Request.Context(), &in)
	if err != nil {
		respondError(c, s.log, err)
		return
	}
	c.JSON(http.StatusCreated, res)
}

type bookingStatus struct {
	Reference   string `json:"reference"`
	ListingType string `json:"listing_type"`
	ListingName string `json:"listing_name"`
	CheckIn     string `json:"check_in"`
	CheckOut    string `json:"check_out"`
	Guests      int    `json:"guests"`
	Status      string `json:"status"`
	Paid        bool   `json:"paid"`
	TotalAmount int64  `json:"total_amount"`
	Deposit     int64  `json:"deposit"`
	Currency    string `json:"currency"`
}

// getBooking returns the guest-facing status without contact details.
func (s *HTTPServer) getBooking(c *gin.Context) {
	b, err := s.deps.Bookings.GetByReference(c.Request.Context(), c.Param("reference"))
	if err != nil {
		respondError(c, s.log, err)
		return
	}
	c.JSON(http.StatusOK, bookingStatus{
		Reference:   b.Reference,
		ListingType: b.ListingType,
		ListingName: b.ListingName,
		CheckIn:     b.CheckIn.Format("2006-01-02"),
		CheckOut:    b.CheckOut.Format("2006-01-02"),
		Guests:      b.Guests,
		Status:      b.Status,
		Paid:        b.PaidAt != nil,
		TotalAmount: b.TotalAmount,
		Deposit:     b.Deposit,
		Currency:    b.Currency,
	})
}

func (s *HTTPServer) stripeWebhook(c *gin.Context) {
	payload, err := io.ReadAll(http.MaxBytesReader(c.Writer, c.Request.Body, maxWebhookBody))
	if err != nil {
		writeError(c, http.StatusBadRequest, "unreadable body")
		return
	}
	if err := s.deps.Bookings.HandleWebhook(c.Request.Context(), payload, c.GetHeader("Stripe-Signature")); err != nil {
		respondError(c, s.log, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"received": true})
}

func (s *HTTPServer) generateItinerary(c *gin.Context) {
	if !s.deps.Itinerary.Enabled() {
		respondError(c, s.log, service.ErrDisabled)
		return
	}
	var req itinerary.Request
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, err.Error())
		return
	}
	text, err := s.deps.Itinerary.Generate(c.Request.Context(), c.ClientIP(), req)
	if err != nil {
		respondError(c, s.log, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"itinerary": text})
}

func (s *HTTPServer) listImages(c *gin.Context) {
	ownerID, err := strconv.ParseUint(c.Query("owner_id"), 10, 64)
	if c.Query("owner_type") == "" || err != nil {
		writeError(c, http.StatusBadRequest, "owner_type and owner_id are required")
		return
	}
	images, err := s.deps.Images.List(c.Request.Context(), c.Query("owner_type"), uint(ownerID))
	if err != nil {
		respondError(c, s.log, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"images": images})
}

func (s *HTTPServer) getImage(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}
	img, err := s.deps.Images.Get(c.Request.Context(), id)
	if err != nil {
		respondError(c, s.log, err)
		return
	}
	c.JSON(http.StatusOK, img)
}

func (s *HTTPServer) uploadImage(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, s.opts.MaxUploadBytes)
	fh, err := c.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(c, http.StatusRequestEntityTooLarge, "file too large")
			return
		}
		writeError(c, http.StatusBadRequest, "multipart field \"file\" is required")
		return
	}
	ownerID, err := strconv.ParseUint(c.PostForm("owner_id"), 10, 64)
	if err != nil {
		writeError(c, http.StatusBadRequest, "owner_id must be a number")
		return
	}
	sortOrder, _ := strconv.Atoi(c.PostForm("sort_order"))

	f, err := fh.Open()
	if err != nil {
		writeError(c, http.StatusBadRequest, "unreadable upload")
		return
	}
	defer f.Close()

	img, err := s.deps.Images.Upload(c.Request.Context(), service.ImageUpload{
		OwnerType: c.PostForm("owner_type"),
		OwnerID:   uint(ownerID),
		Alt:       c.PostForm("alt"),
		SortOrder: sortOrder,
		Body:      f,
	})
	if err != nil {
		respondError(c, s.log, err)
		return
	}
	c.JSON(http.StatusCreated, img)
}

func (s *HTTPServer) deleteImage(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}
	if err := s.deps.Images.Delete(c.Request.Context(), id); err != nil {
		respondError(c, s.log, err)
		return
	}
	c.Status(http.StatusNoContent)
}
