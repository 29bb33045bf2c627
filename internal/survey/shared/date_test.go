package shared

import (
	"testing"
	"time"
)

func TestFormatSurveyDate(t *testing.T) {
	bangkok := time.FixedZone("ICT", 7*60*60)

	tests := []struct {
		name     string
		input    time.Time
		loc      *time.Location
		expected string
	}{
		{
			name:     "Should format in the given zone",
			input:    time.Date(2025, 1, 2, 2, 30, 0, 0, time.UTC),
			loc:      bangkok,
			expected: "02/01/2025 - 09:30",
		},
		{
			name:     "Should roll over to the next day in the given zone",
			input:    time.Date(2024, 12, 31, 20, 5, 0, 0, time.UTC),
			loc:      bangkok,
			expected: "01/01/2025 - 03:05",
		},
		{
			name:     "Should use 24-hour clock",
			input:    time.Date(2023, 3, 15, 22, 0, 0, 0, time.UTC),
			loc:      time.UTC,
			expected: "15/03/2023 - 22:00",
		},
		{
			name:     "Should ignore the zone of the input value",
			input:    time.Date(2023, 3, 15, 10, 0, 0, 0, bangkok),
			loc:      time.UTC,
			expected: "15/03/2023 - 03:00",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := FormatSurveyDate(tt.input, tt.loc)
			if got != tt.expected {
				t.Errorf("FormatSurveyDate() = %q, want %q", got, tt.expected)
			}
		})
	}
}

func TestParseSurveyDate(t *testing.T) {
	tests := []struct {
		name        string
		input       string
		shouldError bool
		wantYear    int
	}{
		{name: "Should parse a well formed date", input: "15/03/2023 - 10:00", wantYear: 2023},
		{name: "Should tolerate surrounding spaces", input: " 02/01/2025 - 09:30 ", wantYear: 2025},
		{name: "Should reject free text", input: "not-a-date", shouldError: true},
		{name: "Should reject ISO dates", input: "2025-01-02T09:30:00Z", shouldError: true},
		{name: "Should reject a missing time", input: "02/01/2025", shouldError: true},
		{name: "Should reject an impossible month", input: "02/13/2025 - 09:30", shouldError: true},
		{name: "Should reject empty input", input: "", shouldError: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseSurveyDate(tt.input, time.UTC)
			if tt.shouldError {
				if err == nil {
					t.Errorf("ParseSurveyDate(%q) expected error, got %v", tt.input, got)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseSurveyDate(%q) unexpected error: %v", tt.input, err)
			}
			if got.Year() != tt.wantYear {
				t.Errorf("Year = %d, want %d", got.Year(), tt.wantYear)
			}
		})
	}
}

func TestSurveyDateYear(t *testing.T) {
	year, err := SurveyDateYear("02/01/2025 - 09:30")
	if err != nil {
		t.Fatalf("SurveyDateYear() unexpected error: %v", err)
	}
	if year != "2025" {
		t.Errorf("SurveyDateYear() = %q, want 2025", year)
	}

	if _, err := SurveyDateYear("not-a-date"); err == nil {
		t.Error("SurveyDateYear() should fail on malformed input")
	}
}

func TestFormatParseRoundTrip(t *testing.T) {
	loc := time.FixedZone("ICT", 7*60*60)
	original := time.Date(2026, 10, 19, 8, 45, 0, 0, loc)

	parsed, err := ParseSurveyDate(FormatSurveyDate(original, loc), loc)
	if err != nil {
		t.Fatalf("round trip failed: %v", err)
	}
	if !parsed.Equal(original) {
		t.Errorf("round trip = %v, want %v", parsed, original)
	}
}
