package cli

import (
	"bytes"
	"context"
	"errors"
	"flag"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/kittclouds/roleforge/internal/errors"
)

func parse(t *testing.T, args ...string) Config {
	t.Helper()
	fs := flag.NewFlagSet("roleforge", flag.ContinueOnError)
	fs.SetOutput(&bytes.Buffer{})
	cfg, err := ParseConfig(fs, args)
	require.NoError(t, err)
	return cfg
}

func run(t *testing.T, db string, args ...string) string {
	t.Helper()
	cfg := parse(t, append([]string{"-db", db, "-seed", "7"}, args...)...)
	var out bytes.Buffer
	require.NoError(t, Run(context.Background(), cfg, &out))
	return out.String()
}

func TestParseConfig(t *testing.T) {
	cfg := parse(t, "-window", "week", "stats")
	assert.Equal(t, "stats", cfg.Command)
	assert.Equal(t, "week", cfg.Window)
	assert.Empty(t, cfg.Args)

	cfg = parse(t, "chat", "abc", "hello", "there")
	assert.Equal(t, []string{"abc", "hello", "there"}, cfg.Args)
}

func TestParseConfigDefaultsToFile(t *testing.T) {
	t.Setenv("ROLEFORGE_DSN", "restored after the test")
	require.NoError(t, os.Unsetenv("ROLEFORGE_DSN"))
	cfg := parse(t, "list")
	assert.Equal(t, defaultDBPath, cfg.App.DSN)
}

func TestParseConfigRequiresCommand(t *testing.T) {
	fs := flag.NewFlagSet("roleforge", flag.ContinueOnError)
	fs.SetOutput(&bytes.Buffer{})
	_, err := ParseConfig(fs, []string{"-db", "x.db"})
	require.Error(t, err)
}

func TestDemoPersistsAcrossRuns(t *testing.T) {
	db := filepath.Join(t.TempDir(), "roleforge.db")

	out := run(t, db, "demo")
	assert.Contains(t, out, "seeded 12 characters")
	assert.Equal(t, 4, strings.Count(out, "you: "))

	out = run(t, db, "list")
	assert.Contains(t, out, "LAST ACTIVE")
	assert.Contains(t, out, "Captain Maren Hollow")
	assert.Equal(t, 13, len(strings.Split(strings.TrimSpace(out), "\n")))

	out = run(t, db, "stats")
	assert.Contains(t, out, "messages:          8 (4 user, 4 character)")

	out = run(t, db, "-sort", "longest", "history")
	assert.Contains(t, out, "2 conversations, 8 messages")
}

func TestAddChatSearch(t *testing.T) {
	db := filepath.Join(t.TempDir(), "roleforge.db")

	id := strings.TrimSpace(run(t, db, "add", "Aria", "cheerful", "A", "lighthouse", "keeper"))
	require.NotEmpty(t, id)

	out := run(t, db, "chat", id, "the", "lighthouse", "is", "dark")
	assert.Contains(t, out, "you: the lighthouse is dark")
	assert.Contains(t, out, "Aria: ")

	out = run(t, db, "search", "lighthouse")
	assert.Contains(t, out, "[backstory] Aria: A lighthouse keeper")
	assert.Contains(t, out, "[message] Aria: the lighthouse is dark")

	out = run(t, db, "favorite", id)
	assert.Equal(t, "favorite: true\n", out)
}

func TestExportImportRoundTrip(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "src.db")
	dst := filepath.Join(dir, "dst.db")
	blob := filepath.Join(dir, "export.json")

	run(t, src, "template", "sage")
	run(t, src, "-out", blob, "export", "json")

	out := run(t, dst, "import", blob)
	assert.Equal(t, "imported 1 characters\n", out)

	csv := run(t, dst, "export", "csv")
	assert.True(t, strings.HasPrefix(csv, "Name,Personality,Backstory"))

	md := run(t, dst, "-out", dir, "export", "md")
	assert.Empty(t, md)
	matches, err := filepath.Glob(filepath.Join(dir, "roleforge-characters-*.md"))
	require.NoError(t, err)
	assert.Len(t, matches, 1)
}

func TestBackupRestore(t *testing.T) {
	db := filepath.Join(t.TempDir(), "roleforge.db")

	run(t, db, "add", "Keeper")
	assert.Contains(t, run(t, db, "backup"), "backup at ")
	run(t, db, "reset")
	assert.Equal(t, "restored 1 characters\n", run(t, db, "restore"))
}

func TestRunErrors(t *testing.T) {
	db := filepath.Join(t.TempDir(), "roleforge.db")

	err := Run(context.Background(), parse(t, "-db", db, "launch"), nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown command")

	err = Run(context.Background(), parse(t, "-db", db, "delete", "missing"), nil)
	assert.True(t, apperrors.IsCode(err, apperrors.CodeNotFound))

	err = Run(context.Background(), parse(t, "-db", db, "restore"), nil)
	assert.True(t, apperrors.IsCode(err, apperrors.CodeNotFound))

	err = Run(context.Background(), parse(t, "-db", db, "add"), nil)
	require.Error(t, err)

	err = Run(context.Background(), parse(t, "-db", db, "-window", "decade", "stats"), nil)
	assert.True(t, apperrors.IsCode(err, apperrors.CodeValidation))
}

func TestInfo(t *testing.T) {
	db := filepath.Join(t.TempDir(), "roleforge.db")
	run(t, db, "add", "Keeper")

	out := run(t, db, "info")
	assert.Contains(t, out, "sqlite-vec v")
	assert.Contains(t, out, "key:         roleforge-storage (")
	assert.Contains(t, out, "characters:  1")
	assert.Contains(t, out, "data size:   ")

	out = run(t, "", "info")
	assert.Contains(t, out, "in-memory store")
	assert.NotContains(t, out, "key:")
}

type failingCloser struct{ err error }

func (c failingCloser) Close() error { return c.err }

func TestCloseWithReportsCloseError(t *testing.T) {
	boom := errors.New("disk full")
	writeErr := errors.New("short write")

	assert.NoError(t, closeWith(failingCloser{}, nil))
	assert.ErrorIs(t, closeWith(failingCloser{err: boom}, nil), boom)
	assert.Equal(t, writeErr, closeWith(failingCloser{err: boom}, writeErr))
	assert.Equal(t, writeErr, closeWith(failingCloser{}, writeErr))
}

func TestExportUnknownFormatCreatesNothing(t *testing.T) {
	dir := t.TempDir()
	db := filepath.Join(dir, "roleforge.db")
	out := filepath.Join(dir, "out.txt")

	err := Run(context.Background(), parse(t, "-db", db, "-out", out, "export", "xml"), nil)
	require.Error(t, err)
	assert.NoFileExists(t, out)
}

func TestTemplateFilter(t *testing.T) {
	db := filepath.Join(t.TempDir(), "roleforge.db")

	out := run(t, db, "-category", "fantasy", "template")
	assert.Contains(t, out, "categories: all, Fantasy, Mystery")
	assert.Contains(t, out, "Orin the Archivist")
	assert.Contains(t, out, "Dame Elowen")
	assert.NotContains(t, out, "Inspector Vale")

	out = run(t, db, "-query", "pirate", "template")
	assert.Contains(t, out, "corsair")
	assert.NotContains(t, out, "Orin the Archivist")
}
