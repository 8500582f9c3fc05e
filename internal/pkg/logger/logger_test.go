package logger

import (
	"bytes"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decode(t *testing.T, buf *bytes.Buffer) map[string]interface{} {
	t.Helper()
	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	return entry
}

func TestRedactPhone(t *testing.T) {
	assert.Equal(t, "+55*******4321", RedactPhone("+5511987654321"))
	assert.Equal(t, "+16*******0000", RedactPhone("+16502530000"))
	assert.Equal(t, "***", RedactPhone("12345"))
}

func TestLogger_RedactsPhoneFields(t *testing.T) {
	var buf bytes.Buffer
	l := New(&buf, DEBUG)

	l.Info("sent", "phone", "+5511987654321", "campaign_id", "c-1")

	entry := decode(t, &buf)
	assert.Equal(t, "INFO", entry["level"])
	assert.Equal(t, "sent", entry["msg"])
	assert.Equal(t, "+55*******4321", entry["phone"])
	assert.Equal(t, "c-1", entry["campaign_id"])
}

func TestLogger_RedactsEmbeddedNumbers(t *testing.T) {
	var buf bytes.Buffer
	l := New(&buf, DEBUG)

	l.Warn("skip", "detail", "number +16502530000 rejected")

	entry := decode(t, &buf)
	assert.Equal(t, "number +16*******0000 rejected", entry["detail"])
}

func TestLogger_ErrorValues(t *testing.T) {
	var buf bytes.Buffer
	l := New(&buf, DEBUG)

	l.Error("boom", "error", errors.New("gateway down"))

	entry := decode(t, &buf)
	assert.Equal(t, "ERROR", entry["level"])
	assert.Equal(t, "gateway down", entry["error"])
}

func TestLogger_LevelFilter(t *testing.T) {
	var buf bytes.Buffer
	l := New(&buf, WARN)

	l.Info("ignored")
	l.Debug("ignored")
	assert.Zero(t, buf.Len())

	l.Warn("kept")
	assert.NotZero(t, buf.Len())
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, DEBUG, ParseLevel("debug"))
	assert.Equal(t, WARN, ParseLevel("warning"))
	assert.Equal(t, ERROR, ParseLevel("ERROR"))
	assert.Equal(t, INFO, ParseLevel("nonsense"))
}
