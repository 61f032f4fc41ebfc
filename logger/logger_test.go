package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decodeLine(t *testing.T, buf *bytes.Buffer) map[string]interface{} {
	t.Helper()
	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	return entry
}

func TestWithFields(t *testing.T) {
	var buf bytes.Buffer
	log := New(&buf).WithFields(Fields{"scraper": "epomaker", "page": 3})

	log.Info().Msg("page scraped")

	entry := decodeLine(t, &buf)
	assert.Equal(t, "epomaker", entry["scraper"])
	assert.Equal(t, float64(3), entry["page"])
	assert.Equal(t, "page scraped", entry["message"])
	assert.Equal(t, "info", entry["level"])
}

func TestWithError(t *testing.T) {
	var buf bytes.Buffer
	New(&buf).WithError(errors.New("boom")).Warn().Msg("sync failed")

	entry := decodeLine(t, &buf)
	assert.Equal(t, "boom", entry["error"])
	assert.Equal(t, "warn", entry["level"])
}

func TestWithContextRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	base := New(&buf)
	ctx := base.WithField("request_id", "abc").Attach(context.Background())

	base.WithContext(ctx).Info().Msg("from context")

	entry := decodeLine(t, &buf)
	assert.Equal(t, "abc", entry["request_id"])
}

func TestWithContextFallsBack(t *testing.T) {
	var buf bytes.Buffer
	base := New(&buf)

	base.WithContext(context.Background()).Info().Msg("no context logger")

	entry := decodeLine(t, &buf)
	assert.Equal(t, "no context logger", entry["message"])
}

func TestComponentLoggers(t *testing.T) {
	assert.NotNil(t, ForWorker())
	assert.NotNil(t, ForScraper("epomaker"))
	assert.NotNil(t, ForServer())
	assert.NotNil(t, Default)
}

func TestLogLevelDefaultsToProduction(t *testing.T) {
	t.Setenv("LOG_LEVEL", "")

	t.Setenv("KEEBSTEALS_ENVIRONMENT", "")
	assert.True(t, isProduction())
	assert.Equal(t, zerolog.InfoLevel, getLogLevel())

	t.Setenv("KEEBSTEALS_ENVIRONMENT", "development")
	assert.False(t, isProduction())
	assert.Equal(t, zerolog.DebugLevel, getLogLevel())

	t.Setenv("LOG_LEVEL", "warn")
	assert.Equal(t, zerolog.WarnLevel, getLogLevel())
}
