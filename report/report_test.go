package report

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLoggerIndentsByLevel(t *testing.T) {
	var buf strings.Builder
	r := New(&buf, 3)

	r.Log(0, "project")
	r.Log(2, "domain")
	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")

	assert.Equal(t, "  project", lines[0])
	assert.Equal(t, "      domain", lines[1])
}

func TestLoggerFiltersByVerbosity(t *testing.T) {
	var buf strings.Builder
	r := New(&buf, 1)

	r.Log(1, "kept")
	r.Log(2, "dropped")
	r.Logf(3, "also %s", "dropped")

	assert.Contains(t, buf.String(), "kept")
	assert.NotContains(t, buf.String(), "dropped")
}

func TestWarningsAlwaysPrint(t *testing.T) {
	var buf strings.Builder
	r := New(&buf, 0)

	r.Warning("Concurrency!", "processor budget clamped")
	assert.Contains(t, buf.String(), "Warning: Concurrency!")
	assert.Contains(t, buf.String(), "processor budget clamped")
}
