package logger

import (
	"path/filepath"
	"testing"

	"github.com/Lipkin10/Racha-IA-demo/internal/shared/config"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	log, err := New(&config.Config{LogLevel: "debug", LogFormat: "json"})
	require.NoError(t, err)
	require.Equal(t, logrus.DebugLevel, log.GetLevel())
	require.IsType(t, &logrus.JSONFormatter{}, log.Formatter)

	log, err = New(&config.Config{LogLevel: "warn", LogFormat: "text"})
	require.NoError(t, err)
	require.IsType(t, &logrus.TextFormatter{}, log.Formatter)
}

func TestNew_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "gateway.log")
	log, err := New(&config.Config{LogLevel: "info", LogOutput: "file", LogFile: path})
	require.NoError(t, err)
	require.DirExists(t, filepath.Dir(path))
	log.Info("hello")
}

func TestNew_BadLevel(t *testing.T) {
	_, err := New(&config.Config{LogLevel: "chatty"})
	require.Error(t, err)
}

func TestWithCaller(t *testing.T) {
	entry := WithCaller(Discard(), "u1", "r1")
	require.Equal(t, "u1", entry.Data["caller_id"])
	require.Equal(t, "r1", entry.Data["request_id"])
}
