package hike

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

// validate is the shared validator instance for hike input fields.
var validate *validator.Validate

func init() {
	validate = validator.New(validator.WithRequiredStructEnabled())
	validate.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return f.Name
		}
		return name
	})
}

// StartFields are supplied when a hike begins.
type StartFields struct {
	Title     string   `json:"title" validate:"max=200"`
	StartMood int      `json:"start_mood" validate:"required,min=1,max=10"`
	Notes     string   `json:"notes" validate:"max=10000"`
	Tags      []string `json:"tags" validate:"omitempty,max=20,dive,min=1,max=40"`
}

// ClosingFields are written together with the status flip at completion.
type ClosingFields struct {
	EndMood    int     `json:"end_mood" validate:"required,min=1,max=10"`
	Reflection string  `json:"reflection" validate:"max=10000"`
	DistanceKm float64 `json:"distance_km" validate:"gte=0,lte=1000"`
	Steps      int     `json:"steps" validate:"gte=0"`
	Rating     int     `json:"rating" validate:"gte=0,lte=5"`
}

// Edit changes narrative fields. Nil fields are left untouched.
// Status and timestamps cannot be edited.
type Edit struct {
	Title      *string   `json:"title" validate:"omitempty,max=200"`
	Notes      *string   `json:"notes" validate:"omitempty,max=10000"`
	Reflection *string   `json:"reflection" validate:"omitempty,max=10000"`
	DistanceKm *float64  `json:"distance_km" validate:"omitempty,gte=0,lte=1000"`
	Steps      *int      `json:"steps" validate:"omitempty,gte=0"`
	Rating     *int      `json:"rating" validate:"omitempty,gte=0,lte=5"`
	StartMood  *int      `json:"start_mood" validate:"omitempty,min=1,max=10"`
	EndMood    *int      `json:"end_mood" validate:"omitempty,min=1,max=10"`
	Tags       *[]string `json:"tags" validate:"omitempty"`
}

// Validate checks the start fields.
func (f StartFields) Validate() error {
	return validateStruct(f)
}

// Validate checks the closing fields.
func (f ClosingFields) Validate() error {
	return validateStruct(f)
}

// Validate checks the edit.
func (e Edit) Validate() error {
	return validateStruct(e)
}

// NewSession builds an in-progress session starting at now.
func NewSession(f StartFields, now time.Time) *Session {
	var tags []string
	if len(f.Tags) > 0 {
		tags = append([]string(nil), f.Tags...)
	}

	return &Session{
		ID:        NewID(),
		Status:    StatusInProgress,
		StartedAt: now,
		StartMood: f.StartMood,
		Title:     f.Title,
		Notes:     f.Notes,
		Tags:      tags,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// Complete flips s to StatusCompleted at endedAt and applies the closing
// fields. The caller persists the result in a single save.
func (s *Session) Complete(f ClosingFields, endedAt time.Time) {
	ended := endedAt
	s.Status = StatusCompleted
	s.EndedAt = &ended
	s.EndMood = f.EndMood
	s.Reflection = f.Reflection
	s.DistanceKm = f.DistanceKm
	s.Steps = f.Steps
	s.Rating = f.Rating
	s.UpdatedAt = endedAt
}

// Apply copies the non-nil edit fields into s.
// EndMood is ignored while the session is in progress.
func (e Edit) Apply(s *Session, now time.Time) {
	if e.Title != nil {
		s.Title = *e.Title
	}
	if e.Notes != nil {
		s.Notes = *e.Notes
	}
	if e.Reflection != nil {
		s.Reflection = *e.Reflection
	}
	if e.DistanceKm != nil {
		s.DistanceKm = *e.DistanceKm
	}
	if e.Steps != nil {
		s.Steps = *e.Steps
	}
	if e.Rating != nil {
		s.Rating = *e.Rating
	}
	if e.StartMood != nil {
		s.StartMood = *e.StartMood
	}
	if e.EndMood != nil && s.Status == StatusCompleted {
		s.EndMood = *e.EndMood
	}
	if e.Tags != nil {
		s.Tags = append([]string(nil), (*e.Tags)...)
	}
	s.UpdatedAt = now
}

// validateStruct runs the validator and converts its errors to ValidationError.
func validateStruct(v any) error {
	err := validate.Struct(v)
	if err == nil {
		return nil
	}

	var validationErrors validator.ValidationErrors
	if !errors.As(err, &validationErrors) {
		return fmt.Errorf("%w: %v", ErrInvalidFields, err)
	}

	verr := &ValidationError{}
	for _, e := range validationErrors {
		verr.Fields = append(verr.Fields, FieldError{
			Field:   e.Field(),
			Message: formatValidationMessage(e),
		})
	}
	return verr
}

// formatValidationMessage creates a human-readable message from a validator error.
func formatValidationMessage(e validator.FieldError) string {
	switch e.Tag() {
	case "required":
		return "is required"
	case "min":
		return fmt.Sprintf("must be at least %s", e.Param())
	case "max":
		return fmt.Sprintf("must be at most %s", e.Param())
	case "gte":
		return fmt.Sprintf("must be greater than or equal to %s", e.Param())
	case "lte":
		return fmt.Sprintf("must be less than or equal to %s", e.Param())
	default:
		return fmt.Sprintf("failed validation '%s'", e.Tag())
	}
}
