// Package validation checks diary entry input before anything is written.
//
// Each rule is available on its own (ValidateTitle, ValidateMood, ...) and as a
// validator/v10 tag, so EntryInput can be checked in one pass that collects
// every failing message rather than stopping at the first.
package validation

import (
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/go-playground/validator/v10"

	"github.com/AnshRaj112/moodiary-backend/internal/apperr"
	"github.com/AnshRaj112/moodiary-backend/internal/models"
)

var (
	errTitleRequired = errors.New("Title is required")
	errTitleTooLong  = fmt.Errorf("Title is too long (maximum %d characters)", models.MaxTitleLength)
	errTooManyImages = fmt.Errorf("Maximum %d images allowed", models.MaxImages)
	errInvalidDate   = errors.New("Date must be a valid date")
	errFutureDate    = errors.New("Entry date cannot be in the future")
)

// ValidateTitle requires a non-blank title of at most MaxTitleLength
// characters after trimming.
func ValidateTitle(title string) error {
	trimmed := strings.TrimSpace(title)
	if trimmed == "" {
		return errTitleRequired
	}
	if utf8.RuneCountInString(trimmed) > models.MaxTitleLength {
		return errTitleTooLong
	}
	return nil
}

// ValidateMood requires one of the seven mood names.
func ValidateMood(mood string) error {
	if _, err := models.ParseMood(mood); err != nil {
		return fmt.Errorf("Mood must be one of: %s", strings.Join(models.MoodNames(), ", "))
	}
	return nil
}

// ValidateImages allows at most MaxImages references, none of them blank.
func ValidateImages(images []string) error {
	if len(images) > models.MaxImages {
		return errTooManyImages
	}
	for i, img := range images {
		if strings.TrimSpace(img) == "" {
			return fmt.Errorf("Image at index %d must be a non-empty string", i)
		}
	}
	return nil
}

// Validator runs the entry rules against a clock.
type Validator struct {
	v   *validator.Validate
	now func() time.Time
}

// New returns a Validator using now as "the current time". A nil now means time.Now.
func New(now func() time.Time) *Validator {
	if now == nil {
		now = time.Now
	}
	val := &Validator{v: validator.New(), now: now}

	// Registration only fails on an empty tag or nil func.
	_ = val.v.RegisterValidation("title", func(fl validator.FieldLevel) bool {
		return ValidateTitle(fl.Field().String()) == nil
	})
	_ = val.v.RegisterValidation("mood", func(fl validator.FieldLevel) bool {
		return ValidateMood(fl.Field().String()) == nil
	})
	_ = val.v.RegisterValidation("images", func(fl validator.FieldLevel) bool {
		images, ok := fl.Field().Interface().([]string)
		return ok && ValidateImages(images) == nil
	})
	_ = val.v.RegisterValidation("entrydate", func(fl validator.FieldLevel) bool {
		date, ok := fl.Field().Interface().(time.Time)
		return ok && val.ValidateEntryDate(date) == nil
	})
	return val
}

// ValidateEntryDate rejects the zero time and anything strictly after now.
func (val *Validator) ValidateEntryDate(date time.Time) error {
	if date.IsZero() {
		return errInvalidDate
	}
	if date.After(val.now()) {
		return errFutureDate
	}
	return nil
}

// ValidateEntryInput checks title, mood, images and date and returns an
// *apperr.ValidationError listing every failure, or nil.
func (val *Validator) ValidateEntryInput(in models.EntryInput) error {
	if in.Images == nil {
		in.Images = []string{}
	}

	err := val.v.Struct(in)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return err
	}

	messages := make([]string, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		messages = append(messages, val.message(fe, in).Error())
	}
	return &apperr.ValidationError{Messages: messages}
}

// message re-runs the failing rule to recover its human-readable reason.
func (val *Validator) message(fe validator.FieldError, in models.EntryInput) error {
	var err error
	switch fe.Tag() {
	case "title":
		err = ValidateTitle(in.Title)
	case "mood":
		err = ValidateMood(in.Mood)
	case "images":
		err = ValidateImages(in.Images)
	case "entrydate":
		err = val.ValidateEntryDate(in.Date)
	}
	if err == nil {
		// The clock may have moved between the two checks.
		err = fmt.Errorf("%s is invalid", fe.Field())
	}
	return err
}
