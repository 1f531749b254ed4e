package logger

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewFileOutput(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "app.log")

	l, err := New(&Config{Level: "debug", Format: "json", Output: "file", FilePath: path})
	require.NoError(t, err)
	assert.Equal(t, logrus.DebugLevel, l.GetLevel())

	l.WithField("filename", "abc").Info("signature saved")

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"message":"signature saved"`)
	assert.Contains(t, string(data), `"filename":"abc"`)
}

func TestNewRejectsUnknownSettings(t *testing.T) {
	_, err := New(&Config{Level: "info", Format: "xml"})
	assert.Error(t, err)

	_, err = New(&Config{Level: "info", Format: "text", Output: "syslog"})
	assert.Error(t, err)
}

func TestNewInvalidLevelFallsBack(t *testing.T) {
	l, err := New(&Config{Level: "loud", Format: "text"})
	require.NoError(t, err)
	assert.Equal(t, logrus.InfoLevel, l.GetLevel())
}
