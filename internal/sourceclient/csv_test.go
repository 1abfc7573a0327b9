package sourceclient

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lsats/databridge/internal/config"
)

func writeCSV(t *testing.T, dir, name, contents string, modTime time.Time) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o600))
	require.NoError(t, os.Chtimes(path, modTime, modTime))
	return path
}

func TestCSVSourceReadsNewestMatch(t *testing.T) {
	dir := t.TempDir()
	older := time.Now().Add(-time.Hour)
	newer := time.Now()

	writeCSV(t, dir, "lab_awards_old.csv", "AwardID,PersonUniqname,PersonApptDeptID\n1,abc,100\n", older)
	writeCSV(t, dir, "lab_awards_new.csv", "AwardID,PersonUniqname,PersonApptDeptID\n2,def,200\n", newer)

	src := NewCSVSource(config.CSVConfig{Glob: filepath.Join(dir, "lab_awards_*.csv")})

	records, err := src.List(context.Background(), nil)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "2", records[0]["AwardID"])
	assert.Equal(t, "def", records[0]["PersonUniqname"])
}

func TestCSVSourceDetailUnsupported(t *testing.T) {
	src := NewCSVSource(config.CSVConfig{Glob: "/nonexistent/*.csv"})
	_, err := src.Detail(context.Background(), "anything")
	assert.ErrorIs(t, err, ErrNoDetailEndpoint)
}

func TestCSVSourceNoMatchesErrors(t *testing.T) {
	dir := t.TempDir()
	src := NewCSVSource(config.CSVConfig{Glob: filepath.Join(dir, "*.csv")})
	_, err := src.List(context.Background(), nil)
	assert.Error(t, err)
}
