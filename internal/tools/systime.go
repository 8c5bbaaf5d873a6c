package tools

import (
	"fmt"
	"time"
)

// CurrentTimeTool reports the current UTC time so the planner can place
// schedule entries relative to it.
type CurrentTimeTool struct {
	now func() time.Time
}

// NewCurrentTimeTool creates the tool. now defaults to time.Now.
func NewCurrentTimeTool(now func() time.Time) *CurrentTimeTool {
	if now == nil {
		now = time.Now
	}
	return &CurrentTimeTool{now: now}
}

// Name returns the tool name.
func (t *CurrentTimeTool) Name() string {
	return "current_time"
}

// Description returns a description of what the tool does.
func (t *CurrentTimeTool) Description() string {
	return "Returns the current UTC date and time. Call it before scheduling anything."
}

// Parameters returns the JSON Schema for the tool's parameters.
func (t *CurrentTimeTool) Parameters() map[string]interface{} {
	return objectSchema(map[string]interface{}{})
}

// Execute executes the tool.
func (t *CurrentTimeTool) Execute(string) (string, error) {
	now := t.now().UTC()
	return fmt.Sprintf("RFC3339: %s\nHuman readable: %s", now.Format(time.RFC3339),
		now.Format("Monday, 02 January 2006, 15:04 MST")), nil
}
