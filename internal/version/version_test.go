package version

import (
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
)

func restore(t *testing.T) {
	v, bt, gc, gv := Version, BuildTime, GitCommit, GoVersion
	t.Cleanup(func() { Version, BuildTime, GitCommit, GoVersion = v, bt, gc, gv })
}

func TestSetInfo(t *testing.T) {
	restore(t)

	SetInfo("1.0.0", "2025-01-01T00:00:00Z", "abc123", "go1.26")

	assert.Equal(t, "1.0.0", Version)
	assert.Equal(t, "2025-01-01T00:00:00Z", BuildTime)
	assert.Equal(t, "abc123", GitCommit)
	assert.Equal(t, "go1.26", GoVersion)
}

func TestSetInfoEmptyValues(t *testing.T) {
	restore(t)

	Version = "test-version"
	SetInfo("", "", "", "")
	assert.Equal(t, "test-version", Version)
}

func TestString(t *testing.T) {
	restore(t)

	SetInfo("2.1.0", "today", "deadbeef", "")
	GoVersion = "unknown"
	assert.Equal(t, "cryptopilot 2.1.0 (commit deadbeef, built today, "+runtime.Version()+")", String())
}

func TestFormatStartupMessage(t *testing.T) {
	restore(t)

	Version = "1.2.3"
	BuildTime = "2025-03-01"
	msg := FormatStartupMessage("cryptopilot")
	assert.Contains(t, msg, "@cryptopilot")
	assert.Contains(t, msg, "1.2.3")
	assert.Contains(t, msg, "2025-03-01")
}
