package shared

import (
	"html"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

var strictPolicy = bluemonday.StrictPolicy()

// SanitizeText strips markup from free-text answers. The policy escapes what it
// keeps, so entities are decoded back to plain text afterwards.
func SanitizeText(value string) string {
	return strings.TrimSpace(html.UnescapeString(strictPolicy.Sanitize(value)))
}

// SanitizeAnswer applies SanitizeText to every value of the answer.
func SanitizeAnswer(answer Answer) Answer {
	if values, ok := answer.Multi(); ok {
		for i, value := range values {
			values[i] = SanitizeText(value)
		}
		return Multi(values)
	}

	value, _ := answer.Scalar()
	return Scalar(SanitizeText(value))
}
