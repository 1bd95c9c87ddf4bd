package forms

import (
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"sort"
	"strings"
	"time"

	"cabo/internal/models"

	"github.com/go-playground/validator/v10"
	"gorm.io/datatypes"
)

// ErrInvalid is matched by every FieldErrors value.
var ErrInvalid = errors.New("invalid form")

const dateLayout = "2006-01-02"

// LeadInput is the body accepted by POST /api/leads.
type LeadInput struct {
	FormType      string            `json:"form_type" binding:"required,oneof=contact villa_inquiry family_trip adventure concierge wedding guide_download"`
	FirstName     string            `json:"first_name" binding:"required,max=80"`
	LastName      string            `json:"last_name" binding:"max=80"`
	Email         string            `json:"email" binding:"required,email,max=255"`
	Phone         string            `json:"phone" binding:"max=40"`
	Interest      string            `json:"interest" binding:"max=255"`
	ArrivalDate   string            `json:"arrival_date" binding:"omitempty,datetime=2006-01-02"`
	DepartureDate string            `json:"departure_date" binding:"omitempty,datetime=2006-01-02"`
	Adults        int               `json:"adults" binding:"min=0,max=50"`
	Children      int               `json:"children" binding:"min=0,max=50"`
	ChildrenAges  []int             `json:"children_ages" binding:"max=50,dive,min=0,max=17"`
	Budget        string            `json:"budget" binding:"max=80"`
	Message       string            `json:"message" binding:"max=5000"`
	UTMSource     string            `json:"utm_source" binding:"max=120"`
	UTMMedium     string            `json:"utm_medium" binding:"max=120"`
	UTMCampaign   string            `json:"utm_campaign" binding:"max=120"`
	Extra         map[string]string `json:"extra" binding:"max=30"`
}

// FieldErrors maps JSON field names to messages.
type FieldErrors map[string]string

func (fe FieldErrors) Error() string {
	keys := make([]string, 0, len(fe))
	for k := range fe {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+": "+fe[k])
	}
	return strings.Join(parts, "; ")
}

func (fe FieldErrors) Is(target error) bool { return target == ErrInvalid }

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.SetTagName("binding")
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		return strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
	})
	return v
}

// Normalize trims whitespace and lower-cases the email in place.
func (in *LeadInput) Normalize() {
	in.FormType = strings.TrimSpace(strings.ToLower(in.FormType))
	in.FirstName = strings.TrimSpace(in.FirstName)
	in.LastName = strings.TrimSpace(in.LastName)
	in.Email = strings.ToLower(strings.TrimSpace(in.Email))
	in.Phone = strings.TrimSpace(in.Phone)
	in.Interest = strings.TrimSpace(in.Interest)
	in.Message = strings.TrimSpace(in.Message)
}

// Validate applies the tag rules plus the per-form rules.
func Validate(in *LeadInput) error {
	fe, err := check(in)
	if err != nil {
		return err
	}

	arrival, _ := parseDate(in.ArrivalDate)
	departure, _ := parseDate(in.DepartureDate)

	switch in.FormType {
	case models.FormVillaInquiry:
		if arrival == nil {
			setOnce(fe, "arrival_date", "is required")
		}
		if departure == nil {
			setOnce(fe, "departure_date", "is required")
		}
		if arrival != nil && departure != nil && !departure.After(*arrival) {
			setOnce(fe, "departure_date", "must be after arrival_date")
		}
	case models.FormFamilyTrip:
		if in.Children < 1 {
			setOnce(fe, "children", "at least one child is required")
		}
		if len(in.ChildrenAges) > 0 && len(in.ChildrenAges) != in.Children {
			setOnce(fe, "children_ages", "must list one age per child")
		}
	case models.FormAdventure:
		if in.Interest == "" {
			setOnce(fe, "interest", "is required")
		}
	}
	if in.Adults+in.Children > 50 {
		setOnce(fe, "adults", "group size must be 50 or fewer")
	}

	if len(fe) > 0 {
		return fe
	}
	return nil
}

// Check runs the binding tags of any struct and reports failures as FieldErrors.
func Check(v interface{}) error {
	fe, err := check(v)
	if err != nil {
		return err
	}
	if len(fe) > 0 {
		return fe
	}
	return nil
}

func check(v interface{}) (FieldErrors, error) {
	fe := FieldErrors{}
	if err := validate.Struct(v); err != nil {
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			return nil, err
		}
		for _, e := range verrs {
			fe[e.Field()] = message(e)
		}
	}
	return fe, nil
}

func setOnce(fe FieldErrors, field, msg string) {
	if _, ok := fe[field]; !ok {
		fe[field] = msg
	}
}

func message(e validator.FieldError) string {
	switch e.Tag() {
	case "required":
		return "is required"
	case "email":
		return "must be a valid email address"
	case "oneof":
		return "must be one of: " + e.Param()
	case "datetime":
		return "must be a date (YYYY-MM-DD)"
	case "max":
		return "must be at most " + e.Param()
	case "min":
		return "must be at least " + e.Param()
	default:
		return fmt.Sprintf("failed %s validation", e.Tag())
	}
}

func parseDate(s string) (*time.Time, error) {
	if s == "" {
		return nil, nil
	}
	t, err := time.Parse(dateLayout, s)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// ToLead builds the persisted lead; call after Validate.
func ToLead(in *LeadInput, publicID string) *models.Lead {
	arrival, _ := parseDate(in.ArrivalDate)
	departure, _ := parseDate(in.DepartureDate)

	lead := &models.Lead{
		PublicID:      publicID,
		FormType:      in.FormType,
		FirstName:     in.FirstName,
		LastName:      in.LastName,
		Email:         in.Email,
		Phone:         in.Phone,
		Interest:      in.Interest,
		ArrivalDate:   arrival,
		DepartureDate: departure,
		Adults:        in.Adults,
		Children:      in.Children,
		Budget:        in.Budget,
		Message:       in.Message,
		UTMSource:     in.UTMSource,
		UTMMedium:     in.UTMMedium,
		UTMCampaign:   in.UTMCampaign,
		Status:        models.LeadNew,
	}
	if len(in.ChildrenAges) > 0 {
		raw, _ := json.Marshal(in.ChildrenAges)
		lead.ChildrenAges = datatypes.JSON(raw)
	}
	if len(in.Extra) > 0 {
		lead.Extra = make(map[string]interface{}, len(in.Extra))
		for k, v := range in.Extra {
			lead.Extra[k] = v
		}
	}
	return lead
}
