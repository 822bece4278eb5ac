package logger

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLogger_Info(t *testing.T) {
	var buf bytes.Buffer
	log := New(&buf, time.UTC)

	log.Info("document_stored", Fields{"key": "documents/1-a.pdf"})

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "info", entry["level"])
	assert.Equal(t, "document_stored", entry["msg"])
	assert.Equal(t, "documents/1-a.pdf", entry["key"])
	assert.NotEmpty(t, entry["ts"])
	assert.NotContains(t, entry, "error")
}

func TestLogger_ErrorAndWith(t *testing.T) {
	var buf bytes.Buffer
	log := New(&buf, time.UTC).With(Fields{"component": "extract"})

	log.Error("extract_failed", errors.New("boom"), Fields{"duration_ms": 12})
	log.Warn("cleanup_failed", nil, nil)

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)

	var first, second map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &first))
	require.NoError(t, json.Unmarshal([]byte(lines[1]), &second))

	assert.Equal(t, "error", first["level"])
	assert.Equal(t, "boom", first["error"])
	assert.Equal(t, "extract", first["component"])
	assert.Equal(t, float64(12), first["duration_ms"])

	assert.Equal(t, "warn", second["level"])
	assert.Equal(t, "extract", second["component"])
}
