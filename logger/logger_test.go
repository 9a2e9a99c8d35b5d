package logger

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProductionLoggerIsJSON(t *testing.T) {
	var buf bytes.Buffer
	l := Component(NewWithWriter("production", &buf), "reconcile")

	l.Debug("hidden")
	l.Info("pass finished", "processed", 3)

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "pass finished", entry["msg"])
	assert.Equal(t, "reconcile", entry["component"])
	assert.EqualValues(t, 3, entry["processed"])
}

func TestDevelopmentLoggerIsTextAtDebug(t *testing.T) {
	var buf bytes.Buffer
	l := NewWithWriter("development", &buf)

	l.Debug("detector skipped", "detector", "calendar_api")

	assert.Contains(t, buf.String(), "level=DEBUG")
	assert.Contains(t, buf.String(), "detector=calendar_api")
}
