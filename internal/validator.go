package internal

import (
	"regexp"
	"time"

	"github.com/go-playground/validator/v10"
)

var catalogIDPattern = regexp.MustCompile(`^[\w.-]+$`)

func NewValidator() *validator.Validate {
	v := validator.New()

	_ = v.RegisterValidation("catalog_id", func(fl validator.FieldLevel) bool {
		return catalogIDPattern.MatchString(fl.Field().String())
	})

	_ = v.RegisterValidation("survey_date", func(fl validator.FieldLevel) bool {
		value := fl.Field().String()
		if value == "" {
			return true
		}
		_, err := ParseSelectedDate(value)
		return err == nil
	})

	return v
}

// ParseSelectedDate accepts the two shapes the entry page sends for the chosen survey date.
func ParseSelectedDate(value string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339, value)
	if err == nil {
		return t, nil
	}

	t, err = time.Parse(time.DateOnly, value)
	if err != nil {
		return time.Time{}, ErrInvalidSurveyDate
	}
	return t, nil
}

func ValidateStruct(v *validator.Validate, s interface{}) error {
	err := v.Struct(s)
	if err != nil {
		return err
	}
	return nil
}
