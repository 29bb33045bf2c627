package shared

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// FlexibleID is an id that producers send either as a JSON number or as
// a JSON string. It is always held in string form.
type FlexibleID string

func (id FlexibleID) String() string {
	return string(id)
}

func (id *FlexibleID) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		*id = ""
		return nil
	}

	if trimmed[0] == '"' {
		var value string
		if err := json.Unmarshal(trimmed, &value); err != nil {
			return err
		}
		*id = FlexibleID(strings.TrimSpace(value))
		return nil
	}

	var number json.Number
	if err := json.Unmarshal(trimmed, &number); err != nil {
		return fmt.Errorf("employee id must be a string or a number: %w", err)
	}
	*id = FlexibleID(number.String())
	return nil
}
