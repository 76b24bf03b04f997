package main

import (
	"bytes"
	"context"
	"encoding/json"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func runCLI(t *testing.T, args ...string) (int, string, string) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	code := run(context.Background(), append([]string{appName}, args...), &stdout, &stderr)
	return code, stdout.String(), stderr.String()
}

func TestCalc_text(t *testing.T) {
	code, out, _ := runCLI(t, "calc", "--dry-bulb", "25", "--wet-bulb", "18")
	require.Equal(t, exitOK, code)
	assert.Contains(t, out, "relative humidity")
	assert.Contains(t, out, "50.5")
	assert.Contains(t, out, "kJ/kg")
}

func TestCalc_json(t *testing.T) {
	code, out, _ := runCLI(t, "calc", "-d", "25", "-w", "18", "--format", "json")
	require.Equal(t, exitOK, code)

	var got map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	assert.InDelta(t, 50.5, got["relativeHumidity"], 1.0)
	assert.InDelta(t, 14.0, got["dewPoint"], 0.5)
}

func TestCalc_rejected(t *testing.T) {
	code, _, errOut := runCLI(t, "calc", "--dry-bulb", "20", "--wet-bulb", "22")
	assert.Equal(t, exitRejected, code)
	assert.Contains(t, errOut, "invalid_input")

	code, out, _ := runCLI(t, "calc", "--dry-bulb", "25", "--wet-bulb", "18", "--format", "json", "--max-iterations", "1")
	assert.Equal(t, exitRejected, code)
	assert.Contains(t, out, `"code":"convergence_error"`)
}

func TestUsageErrors(t *testing.T) {
	for _, args := range [][]string{
		{},
		{"calc", "--dry-bulb", "25"},
		{"calc", "--dry-bulb", "warm", "--wet-bulb", "18"},
		{"calc", "-d", "25", "-w", "18", "--format", "xml"},
		{"bogus"},
	} {
		code, _, _ := runCLI(t, args...)
		assert.Equal(t, exitUsage, code, "args %v", args)
	}
}

func TestSchema(t *testing.T) {
	for _, k := range []string{"APP_ENV", "LOG_LEVEL", "DB_DSN", "INFLUXDB_URL", "PSYCHRO_MIN_TEMP_C", "PSYCHRO_MAX_TEMP_C"} {
		t.Setenv(k, "")
	}
	t.Setenv("SQLITE_PATH", filepath.Join(t.TempDir(), "sub", "m.db"))
	t.Chdir(t.TempDir())

	code, out, errOut := runCLI(t, "schema")
	require.Equal(t, exitOK, code, errOut)
	assert.True(t, strings.HasPrefix(out, "schema up to date (2 migrations applied)"), out)
}
