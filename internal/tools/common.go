package tools

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/aatumaykin/cryptopilot/internal/schedule"
)

// parseJSON decodes tool arguments, rejecting unknown fields so that
// misspelled parameters surface as errors the model can fix.
func parseJSON(jsonStr string, v interface{}) error {
	if strings.TrimSpace(jsonStr) == "" {
		jsonStr = "{}"
	}
	decoder := json.NewDecoder(strings.NewReader(jsonStr))
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(v); err != nil {
		return NewValidationError("invalid_arguments", "invalid arguments: "+err.Error(), nil)
	}
	return nil
}

// resolveTime parses an optional time argument; empty means now.
func resolveTime(value string, now time.Time) (time.Time, error) {
	if strings.TrimSpace(value) == "" {
		return now.UTC(), nil
	}
	t, err := schedule.ParseTime(value)
	if err != nil {
		return time.Time{}, NewValidationError("invalid_time",
			"time must be RFC3339, e.g. 2025-03-01T15:00:00Z", map[string]any{"value": value})
	}
	return t, nil
}

func toJSON(v any) string {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err.Error()
	}
	return string(data)
}

func objectSchema(properties map[string]interface{}, required ...string) map[string]interface{} {
	if required == nil {
		required = []string{}
	}
	return map[string]interface{}{
		"type":       "object",
		"properties": properties,
		"required":   required,
	}
}

func stringProp(description string) map[string]interface{} {
	return map[string]interface{}{"type": "string", "description": description}
}
