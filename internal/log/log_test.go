package log

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/amanthanvi/registry/internal/config"
	"github.com/stretchr/testify/require"
)

func TestRedactionCNICNumberField(t *testing.T) {
	t.Parallel()
	out := logSingleField(t, "cnic_number", "12345-1234567-1")
	require.Equal(t, "[REDACTED]", out["cnic_number"])
}

func TestRedactionCNICField(t *testing.T) {
	t.Parallel()
	out := logSingleField(t, "cnic", "12345-1234567-1")
	require.Equal(t, "[REDACTED]", out["cnic"])
}

func TestRedactionDateOfBirthField(t *testing.T) {
	t.Parallel()
	out := logSingleField(t, "date_of_birth", "1990-01-01")
	require.Equal(t, "[REDACTED]", out["date_of_birth"])
}

func TestRedactionFatherHusbandNameField(t *testing.T) {
	t.Parallel()
	out := logSingleField(t, "father_husband_name", "Raza")
	require.Equal(t, "[REDACTED]", out["father_husband_name"])
}

func TestRedactionIsCaseInsensitive(t *testing.T) {
	t.Parallel()
	out := logSingleField(t, "CNIC_Number", "12345-1234567-1")
	require.Equal(t, "[REDACTED]", out["CNIC_Number"])
}

func TestRedactionImageFields(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	logger := slog.New(NewRedactingHandler(slog.NewJSONHandler(&buf, nil)))
	logger.Info("test", "cnic_front_image", []byte{0x89, 'P', 'N', 'G'}, "cnic_back_image", []byte("jpeg"))

	out := decodeLine(t, buf.Bytes())
	require.Equal(t, "[REDACTED]", out["cnic_front_image"])
	require.Equal(t, "[REDACTED]", out["cnic_back_image"])
}

func TestRedactionInsideGroupsAndWithAttrs(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	logger := slog.New(NewRedactingHandler(slog.NewJSONHandler(&buf, nil))).
		With("cnic_number", "12345-1234567-1")
	logger.Info("test", slog.Group("member", slog.String("cnic_number", "x"), slog.Int64("id", 4)))

	out := decodeLine(t, buf.Bytes())
	require.Equal(t, "[REDACTED]", out["cnic_number"])
	member, ok := out["member"].(map[string]any)
	require.True(t, ok)
	require.Equal(t, "[REDACTED]", member["cnic_number"])
	require.EqualValues(t, 4, member["id"])
}

func TestNonSensitiveFieldsPassThrough(t *testing.T) {
	t.Parallel()
	out := logSingleField(t, "member_id", "42")
	require.Equal(t, "42", out["member_id"])
	out = logSingleField(t, "name", "Ali")
	require.Equal(t, "Ali", out["name"])
}

func TestNewWritesRedactedJSONToFile(t *testing.T) {
	t.Parallel()

	logPath := filepath.Join(t.TempDir(), "logs", "registry.log")
	logger, closer, err := New(config.LoggingConfig{Level: "debug", File: logPath}, nil)
	require.NoError(t, err)

	logger.Debug("member created", "member_id", 1, "cnic_number", "12345-1234567-1")
	require.NoError(t, closer.Close())

	data, err := os.ReadFile(logPath)
	require.NoError(t, err)
	require.NotContains(t, string(data), "12345-1234567-1")
	out := decodeLine(t, data)
	require.Equal(t, "member created", out["msg"])
}

func TestNewStderrTargetHonoursLevel(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	logger, closer, err := New(config.LoggingConfig{Level: "warn", File: config.LogFileStderr}, &buf)
	require.NoError(t, err)
	t.Cleanup(func() { _ = closer.Close() })

	logger.Info("quiet")
	require.Empty(t, buf.Bytes())
	logger.Warn("loud")
	require.Equal(t, "loud", decodeLine(t, buf.Bytes())["msg"])
}

func TestNewRejectsUnknownLevel(t *testing.T) {
	t.Parallel()
	_, _, err := New(config.LoggingConfig{Level: "chatty", File: config.LogFileStderr}, &bytes.Buffer{})
	require.Error(t, err)
}

func TestLogRotationCreatesNewFileAfterTenMiB(t *testing.T) {
	logDir := t.TempDir()
	logPath := filepath.Join(logDir, "registry.log")

	writer, err := NewRotatingWriter(config.LoggingConfig{File: logPath})
	require.NoError(t, err)
	t.Cleanup(func() { _ = writer.Close() })

	chunk := bytes.Repeat([]byte("a"), 1024*1024)
	for i := 0; i < 11; i++ {
		_, err = writer.Write(chunk)
		require.NoError(t, err)
	}

	files, err := filepath.Glob(filepath.Join(logDir, "registry*"))
	require.NoError(t, err)
	require.GreaterOrEqual(t, len(files), 2)
}

func TestLogRotationRetainsMaxFiveFiles(t *testing.T) {
	logDir := t.TempDir()
	logPath := filepath.Join(logDir, "registry.log")

	writer, err := NewRotatingWriter(config.LoggingConfig{File: logPath})
	require.NoError(t, err)
	t.Cleanup(func() { _ = writer.Close() })

	chunk := bytes.Repeat([]byte("b"), 1024*1024)
	for i := 0; i < 80; i++ {
		_, err := writer.Write(chunk)
		require.NoError(t, err)
	}

	files, err := filepath.Glob(filepath.Join(logDir, "registry*"))
	require.NoError(t, err)

	backupCount := 0
	for _, f := range files {
		if f == logPath {
			continue
		}
		backupCount++
	}
	require.LessOrEqual(t, backupCount, 5)
}

func TestRotatingWriterAppliesConfiguredLimits(t *testing.T) {
	t.Parallel()

	logPath := filepath.Join(t.TempDir(), "nested", "registry.log")
	writer, err := NewRotatingWriter(config.LoggingConfig{File: logPath, MaxSizeMB: 3, MaxFiles: 2})
	require.NoError(t, err)
	t.Cleanup(func() { _ = writer.Close() })

	require.Equal(t, logPath, writer.Filename)
	require.Equal(t, 3, writer.MaxSize)
	require.Equal(t, 2, writer.MaxBackups)
	require.DirExists(t, filepath.Dir(logPath))
}

func TestRotatingWriterDefaultsZeroLimits(t *testing.T) {
	t.Parallel()

	writer, err := NewRotatingWriter(config.LoggingConfig{File: filepath.Join(t.TempDir(), "registry.log")})
	require.NoError(t, err)
	t.Cleanup(func() { _ = writer.Close() })

	require.Equal(t, config.DefaultLogMaxSizeMB, writer.MaxSize)
	require.Equal(t, config.DefaultLogMaxFiles, writer.MaxBackups)
}

func TestRotatingWriterRejectsNonFileTargets(t *testing.T) {
	t.Parallel()

	_, err := NewRotatingWriter(config.LoggingConfig{})
	require.Error(t, err)
	_, err = NewRotatingWriter(config.LoggingConfig{File: config.LogFileStderr})
	require.Error(t, err)
}

func logSingleField(t *testing.T, key, value string) map[string]any {
	t.Helper()

	var buf bytes.Buffer
	base := slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})
	logger := slog.New(NewRedactingHandler(base))
	logger.Info("test", key, value)
	return decodeLine(t, buf.Bytes())
}

func decodeLine(t *testing.T, data []byte) map[string]any {
	t.Helper()

	out := map[string]any{}
	require.NoError(t, json.Unmarshal(bytes.TrimSpace(data), &out))
	return out
}
