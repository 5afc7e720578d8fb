package logger

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lted/pkg/testutil"
)

func TestParseLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, ParseLevel("DEBUG"))
	assert.Equal(t, slog.LevelWarn, ParseLevel("warning"))
	assert.Equal(t, slog.LevelError, ParseLevel(" error "))
	assert.Equal(t, slog.LevelInfo, ParseLevel("verbose"))
}

func TestNewWithWriter(t *testing.T) {
	testutil.Given(t, "a logger at warn level", func(t *testing.T) {
		var buf bytes.Buffer
		log := NewWithWriter(&buf, "warn")

		testutil.When(t, "an info line is logged", func(t *testing.T) {
			log.Info("dropped")
			testutil.Then(t, "nothing is written", func(t *testing.T) {
				assert.Zero(t, buf.Len())
			})
		})

		testutil.When(t, "a warning is logged", func(t *testing.T) {
			log.Warn("kept", "membership_id", "m-1")
			testutil.Then(t, "one JSON line carries the attributes", func(t *testing.T) {
				var line map[string]any
				require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
				assert.Equal(t, "kept", line["msg"])
				assert.Equal(t, "m-1", line["membership_id"])
			})
		})
	})
}
