package obs

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewLoggerJSONOutsideDev(t *testing.T) {
	var buf bytes.Buffer
	l := newLogger(&buf, "prod")

	l.Info("room created", "room", "r1")
	l.Debug("hidden")

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "room created", line["msg"])
	assert.Equal(t, "r1", line["room"])
}

func TestNewLoggerTintInDev(t *testing.T) {
	var buf bytes.Buffer
	l := newLogger(&buf, "dev")

	l.Debug("typing dropped", "room", "r1")

	assert.Contains(t, buf.String(), "typing dropped")
	assert.False(t, json.Valid(bytes.TrimSpace(buf.Bytes())))
}

func TestOr(t *testing.T) {
	assert.Same(t, slog.Default(), Or(nil))
	l := slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))
	assert.Same(t, l, Or(l))
}
