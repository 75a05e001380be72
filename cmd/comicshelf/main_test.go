package main

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"comicshelf/internal/comics"
	"comicshelf/internal/importer"
)

type cliTestEnv struct {
	configPath string
	baseDir    string
}

func setupCLITestEnv(t *testing.T) *cliTestEnv {
	t.Helper()
	for _, key := range []string{
		"COMIC_VINE_API_KEY", "COMICSHELF_DB_PATH", "COMICSHELF_LOG_LEVEL", "COMICSHELF_LOG_FORMAT", "COMICSHELF_CONFIG",
	} {
		t.Setenv(key, "")
	}

	base := t.TempDir()
	configPath := filepath.Join(base, "config.toml")
	body := `db_path = "` + filepath.ToSlash(filepath.Join(base, "comics.db")) + `"
log_level = "error"
log_format = "text"
`
	require.NoError(t, os.WriteFile(configPath, []byte(body), 0o644))
	return &cliTestEnv{configPath: configPath, baseDir: base}
}

func (e *cliTestEnv) run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	err := execute(context.Background(), append([]string{"--config", e.configPath}, args...), &out)
	return out.String(), err
}

func (e *cliTestEnv) writeCSV(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(e.baseDir, name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

const collection = `Issue,Issue Number,Series Start Year,Issue Published Year,Storyline,Story Order
Batman,1,1940,1940,Origins,1
Batman,2,1940,1940,,
Detective Comics,27,1937,1939,Origins,0
`

func TestImportListAndToggle(t *testing.T) {
	env := setupCLITestEnv(t)

	out, err := env.run(t, "import", env.writeCSV(t, "comics.csv", collection))
	require.NoError(t, err)
	assert.Contains(t, out, "3")

	out, err = env.run(t, "list")
	require.NoError(t, err)
	lower := strings.ToLower(out)
	assert.Contains(t, lower, "origins")
	assert.Contains(t, lower, "ungrouped")
	assert.Contains(t, out, "Detective Comics")

	out, err = env.run(t, "list", "--json", "--sort", "id")
	require.NoError(t, err)
	var groups []comics.Group
	require.NoError(t, json.Unmarshal([]byte(out), &groups))
	require.Len(t, groups, 1)
	require.Len(t, groups[0].Comics, 3)
	assert.Equal(t, "Batman", groups[0].Comics[0].Series)

	out, err = env.run(t, "status", "1")
	require.NoError(t, err)
	assert.Equal(t, "Batman #1 (1940): Read\n", out)

	out, err = env.run(t, "status", "1")
	require.NoError(t, err)
	assert.Equal(t, "Batman #1 (1940): Unread\n", out)
}

func TestStatusErrors(t *testing.T) {
	env := setupCLITestEnv(t)

	_, err := env.run(t, "status", "42")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")

	_, err = env.run(t, "status", "abc")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid comic id")
}

func TestListEmpty(t *testing.T) {
	env := setupCLITestEnv(t)

	out, err := env.run(t, "list")
	require.NoError(t, err)
	assert.Contains(t, out, "No comics yet")

	out, err = env.run(t, "list", "--json")
	require.NoError(t, err)
	assert.JSONEq(t, `[]`, out)
}

func TestExportRoundTrip(t *testing.T) {
	env := setupCLITestEnv(t)

	_, err := env.run(t, "import", env.writeCSV(t, "comics.csv", collection))
	require.NoError(t, err)
	_, err = env.run(t, "status", "2")
	require.NoError(t, err)

	exported := filepath.Join(env.baseDir, "out", "export.csv")
	out, err := env.run(t, "export", exported)
	require.NoError(t, err)
	assert.Contains(t, out, "exported 3 comics")

	data, err := os.ReadFile(exported)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 4)
	assert.Equal(t, strings.Join(importer.Columns, ","), lines[0])
	assert.Contains(t, lines[2], "Read")

	out, err = env.run(t, "import", "--changes", exported)
	require.NoError(t, err)
	assert.NotContains(t, strings.ToLower(out), "changes")
}

func TestImportMissingColumns(t *testing.T) {
	env := setupCLITestEnv(t)

	_, err := env.run(t, "import", env.writeCSV(t, "bad.csv", "Issue,Issue Number\nBatman,1\n"))
	require.Error(t, err)
	assert.ErrorIs(t, err, importer.ErrMissingColumns)
}

func TestLookupRequiresAPIKey(t *testing.T) {
	env := setupCLITestEnv(t)

	_, err := env.run(t, "lookup", "Batman", "1", "1940")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "COMIC_VINE_API_KEY")
}

func TestWebsocketURL(t *testing.T) {
	tests := []struct {
		base    string
		want    string
		wantErr bool
	}{
		{base: "http://localhost:8080", want: "ws://localhost:8080/ws"},
		{base: "https://shelf.example.com/", want: "wss://shelf.example.com/ws"},
		{base: "ws://127.0.0.1:9000", want: "ws://127.0.0.1:9000/ws"},
		{base: "ftp://host", wantErr: true},
		{base: "http://", wantErr: true},
	}
	for _, tt := range tests {
		got, err := websocketURL(tt.base, "/ws")
		if tt.wantErr {
			assert.Error(t, err, tt.base)
			continue
		}
		require.NoError(t, err, tt.base)
		assert.Equal(t, tt.want, got)
	}
}

func TestDescribeEvent(t *testing.T) {
	assert.Equal(t, "comic 7 Batman #1 is now Read",
		describeEvent([]byte(`{"type":"comic.status","comic_id":7,"issue":"Batman","issue_number":"1","status":"Read"}`), false))
	assert.Equal(t, "import run-1: 3 rows, 2 created, 1 updated, 0 unchanged, 0 skipped",
		describeEvent([]byte(`{"type":"import.completed","run_id":"run-1","rows":3,"created":2,"updated":1}`), false))
	assert.Equal(t, "not json", describeEvent([]byte("not json"), false))
	assert.Equal(t, `{"type":"comic.status"}`, describeEvent([]byte(`{"type":"comic.status"}`), true))
}

func TestWatchTCP(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()

	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		_, _ = conn.Write([]byte(`{"type":"welcome","transport":"tcp","clients":1}` + "\n"))
		_, _ = conn.Write([]byte(`{"type":"comic.status","comic_id":3,"issue":"Saga","issue_number":"1","status":"Read"}` + "\n"))
	}()

	var out bytes.Buffer
	err = watchTCP(context.Background(), ln.Addr().String(), &out, false)
	assert.ErrorIs(t, err, io.EOF)
	assert.Equal(t, "connected over tcp (1 subscribers)\ncomic 3 Saga #1 is now Read\n", out.String())
}

func TestSheetPadsAndTrimsRows(t *testing.T) {
	assert.Empty(t, newSheet("nothing").String())

	sh := newSheet("Title", num("A"), col("B"))
	sh.add("x")
	sh.add("y", "z", "dropped")
	out := sh.String()
	assert.Contains(t, out, "x")
	assert.Contains(t, out, "z")
	assert.NotContains(t, out, "dropped")
	assert.Contains(t, strings.ToLower(out), "title")
	require.Len(t, sh.rows, 2)
	assert.Equal(t, "", sh.rows[0][1])
}
