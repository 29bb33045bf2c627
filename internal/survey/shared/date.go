package shared

import (
	"fmt"
	"strings"
	"time"
)

// SurveyDateLayout renders as "DD/MM/YYYY - HH:MM" in 24-hour time.
const SurveyDateLayout = "02/01/2006 - 15:04"

const DefaultReferenceZone = "Asia/Bangkok"

var referenceLocation = mustLoadLocation(DefaultReferenceZone)

func mustLoadLocation(name string) *time.Location {
	loc, err := time.LoadLocation(name)
	if err != nil {
		// tzdata may be missing on minimal images; UTC+7 matches the default zone.
		return time.FixedZone(name, 7*60*60)
	}
	return loc
}

// ReferenceLocation returns the zone survey dates are rendered in when the caller
// does not pass one.
func ReferenceLocation() *time.Location {
	return referenceLocation
}

// SetReferenceLocation replaces the default zone. It is called once at startup.
func SetReferenceLocation(loc *time.Location) {
	if loc != nil {
		referenceLocation = loc
	}
}

func FormatSurveyDate(t time.Time, loc *time.Location) string {
	if loc == nil {
		loc = referenceLocation
	}
	return t.In(loc).Format(SurveyDateLayout)
}

// ParseSurveyDate reads a "DD/MM/YYYY - HH:MM" string as a wall-clock time in loc.
func ParseSurveyDate(value string, loc *time.Location) (time.Time, error) {
	if loc == nil {
		loc = referenceLocation
	}

	t, err := time.ParseInLocation(SurveyDateLayout, strings.TrimSpace(value), loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("survey date %q does not match DD/MM/YYYY - HH:MM: %w", value, err)
	}
	return t, nil
}

// SurveyDateYear extracts the four-digit year of a formatted survey date.
func SurveyDateYear(value string) (string, error) {
	t, err := ParseSurveyDate(value, time.UTC)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%04d", t.Year()), nil
}
