package logging

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/study-analytics-engine/internal/domain"
)

func TestNew_JSON(t *testing.T) {
	logger, closer, err := New(domain.LoggingConfig{Level: "debug", Format: "json", Output: "stdout"})
	require.NoError(t, err)
	defer closer.Close()

	var buf bytes.Buffer
	logger.SetOutput(&buf)
	Component(logger, "engine").WithField(FieldPatientID, "P-1").Debug("Derivation served")

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "Derivation served", entry["message"])
	assert.Equal(t, "debug", entry["level"])
	assert.Equal(t, "engine", entry[FieldComponent])
	assert.Equal(t, "P-1", entry[FieldPatientID])
	assert.Contains(t, entry, "timestamp")
}

func TestNew_Text(t *testing.T) {
	logger, _, err := New(domain.LoggingConfig{Level: "WARN", Format: "text"})
	require.NoError(t, err)
	assert.Equal(t, logrus.WarnLevel, logger.GetLevel())
	assert.IsType(t, &logrus.TextFormatter{}, logger.Formatter)
}

func TestNew_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "engine.log")

	logger, closer, err := New(domain.LoggingConfig{Level: "info", Format: "json", Output: path})
	require.NoError(t, err)

	logger.Info("Dataset loaded")
	require.NoError(t, closer.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "Dataset loaded")
}

func TestNew_Invalid(t *testing.T) {
	_, _, err := New(domain.LoggingConfig{Level: "chatty", Format: "json"})
	assert.Error(t, err)

	_, _, err = New(domain.LoggingConfig{Level: "info", Format: "xml"})
	assert.Error(t, err)
}
