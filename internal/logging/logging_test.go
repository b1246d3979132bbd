package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func restoreDefault(t *testing.T) {
	prev := slog.Default()
	t.Cleanup(func() { slog.SetDefault(prev) })
}

func TestSetupJSONCarriesSubsystem(t *testing.T) {
	restoreDefault(t)

	var buf bytes.Buffer
	require.NoError(t, Setup(&buf, "info", FormatJSON))

	Info("run finished", Controller, "epochs", 100)

	var rec map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &rec))
	assert.Equal(t, "run finished", rec["msg"])
	assert.Equal(t, "controller", rec["subsystem"])
	assert.EqualValues(t, 100, rec["epochs"])
}

func TestSetupFiltersLevel(t *testing.T) {
	restoreDefault(t)

	var buf bytes.Buffer
	require.NoError(t, Setup(&buf, "warn", FormatText))

	Debug("hidden", Training)
	Info("hidden", Training)
	assert.Zero(t, buf.Len())

	Warn("shown", Training, "loss", 0.5)
	assert.Contains(t, buf.String(), "subsystem=training")
	assert.Contains(t, buf.String(), "loss=0.5")
}

func TestSetupInvalid(t *testing.T) {
	restoreDefault(t)

	var buf bytes.Buffer
	assert.Error(t, Setup(&buf, "loud", FormatText))
	assert.Error(t, Setup(&buf, "info", "xml"))
}

func TestParseLevel(t *testing.T) {
	l, err := ParseLevel("DEBUG")
	require.NoError(t, err)
	assert.Equal(t, slog.LevelDebug, l)
}

func TestDiscard(t *testing.T) {
	restoreDefault(t)
	Discard()
	assert.False(t, slog.Default().Enabled(context.Background(), slog.LevelError))
}
