package timetable

import (
	"archive/zip"
	"bytes"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func buildZip(t *testing.T, files map[string]string) []byte {
	t.Helper()
	var buffer bytes.Buffer
	writer := zip.NewWriter(&buffer)
	for name, contents := range files {
		entry, err := writer.Create(name)
		require.NoError(t, err)
		_, err = io.WriteString(entry, contents)
		require.NoError(t, err)
	}
	require.NoError(t, writer.Close())
	return buffer.Bytes()
}

var minimalTimetable = map[string]string{
	"feed/stations.csv": "code,name,city\nA,Alpha,\nB,Beta,\n",
	"feed/trains.csv":   "number,name,type\n1,One,\n",
	"README.txt":        "ignored",
}

func TestParseArgs(t *testing.T) {
	var errOut bytes.Buffer

	cfg, err := ParseArgs("timetable-import", []string{"-dir", "/tmp/x", "-dry-run"}, &errOut)
	require.NoError(t, err)
	assert.True(t, cfg.DryRun)
	assert.Equal(t, "pgx", cfg.DatabaseDriver)

	_, err = ParseArgs("timetable-import", []string{"-dir", "/tmp/x", "-zip", "a.zip", "-dry-run"}, &errOut)
	assert.ErrorContains(t, err, "exactly one of -zip, -dir or -url")

	_, err = ParseArgs("timetable-import", []string{"-dir", "/tmp/x", "-dry-run", "-database", "db"}, &errOut)
	assert.ErrorContains(t, err, "exactly one of -dry-run or -database")

	_, err = ParseArgs("timetable-import", []string{"-dir", "/tmp/x", "-database", "db", "-driver", "mysql"}, &errOut)
	assert.Error(t, err)
}

func TestParseArgsReadsToml(t *testing.T) {
	path := filepath.Join(t.TempDir(), "import.toml")
	require.NoError(t, os.WriteFile(path, []byte(`
[database]
driver = "sqlite"
dsn = "ticketing.db"

[import]
default_url = "https://example.com/timetable.zip"
`), 0o644))

	cfg, err := ParseArgs("timetable-import", []string{"-toml", path}, io.Discard)
	require.NoError(t, err)
	assert.Equal(t, "https://example.com/timetable.zip", cfg.Url)
	assert.Equal(t, "ticketing.db", cfg.DatabaseConnection)
	assert.Equal(t, "sqlite", cfg.DatabaseDriver)

	cfg, err = ParseArgs("timetable-import", []string{"-toml", path, "-dir", "local"}, io.Discard)
	require.NoError(t, err)
	assert.Empty(t, cfg.Url)
	assert.Equal(t, "local", cfg.DirPath)
}

func TestDryRunFromZip(t *testing.T) {
	zipPath := filepath.Join(t.TempDir(), "timetable.zip")
	require.NoError(t, os.WriteFile(zipPath, buildZip(t, minimalTimetable), 0o644))

	var stdOut, errOut bytes.Buffer
	code := Main("timetable-import", []string{"-zip", zipPath, "-dry-run", "-log-format", "text"}, &stdOut, &errOut)
	require.Equal(t, 0, code, errOut.String())
	assert.Equal(t, "would import: 2 stations, 1 trains, 0 coaches, 0 schedules, 0 journeys\n", stdOut.String())
	assert.Contains(t, errOut.String(), "[BENCH]")
}

func TestImportFromURLIntoSQLite(t *testing.T) {
	archive := buildZip(t, minimalTimetable)
	server := httptest.NewServer(http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
		if request.URL.Path != "/timetable.zip" {
			http.NotFound(writer, request)
			return
		}
		writer.Write(archive)
	}))
	defer server.Close()

	dbPath := filepath.Join(t.TempDir(), "ticketing.db")
	var stdOut, errOut bytes.Buffer
	code := Main("timetable-import", []string{
		"-url", server.URL + "/timetable.zip", "-driver", "sqlite", "-database", dbPath, "-migrate",
	}, &stdOut, &errOut)
	require.Equal(t, 0, code, errOut.String())
	assert.True(t, strings.HasPrefix(stdOut.String(), "imported: 2 stations, 1 trains"))

	code = Main("timetable-import", []string{
		"-url", server.URL + "/missing.zip", "-driver", "sqlite", "-database", dbPath,
	}, &stdOut, &errOut)
	assert.Equal(t, -1, code)
	assert.Contains(t, errOut.String(), "status code 404")
}
