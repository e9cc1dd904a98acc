package common

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetupLoggerJSON(t *testing.T) {
	var buf bytes.Buffer
	log := SetupLogger(&LoggingOpts{JSON: true, Service: "collections", Version: "v1.2.3", Output: &buf})

	log.Debug("hidden")
	log.Info("visible", "identifier", "cats")

	var record map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &record))
	assert.Equal(t, "visible", record["msg"])
	assert.Equal(t, "collections", record["service"])
	assert.Equal(t, "v1.2.3", record["version"])
	assert.Equal(t, "cats", record["identifier"])
}

func TestSetupLoggerDebug(t *testing.T) {
	var buf bytes.Buffer
	log := SetupLogger(&LoggingOpts{Debug: true, Output: &buf})

	log.Debug("stored record")
	assert.Contains(t, buf.String(), "level=DEBUG")
	assert.NotContains(t, buf.String(), "service=")
}
