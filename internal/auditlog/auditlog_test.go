package auditlog

import (
	"bufio"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"repo-pretrade/internal/types"
)

func readEntries(t *testing.T, p string) []Entry {
	t.Helper()
	f, err := os.Open(p)
	require.NoError(t, err)
	defer f.Close()

	var out []Entry
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		var e Entry
		require.NoError(t, json.Unmarshal(sc.Bytes(), &e))
		out = append(out, e)
	}
	require.NoError(t, sc.Err())
	return out
}

func TestAppendBatch(t *testing.T) {
	dir := t.TempDir()
	l := New(dir, time.UTC)
	l.now = func() time.Time { return time.Date(2024, 1, 10, 9, 30, 0, 0, time.UTC) }

	res := &types.BatchResult{
		RunID:   "run-1",
		Horizon: 3,
		Records: []types.BondRecord{
			{ISIN: "RU000A0JX0J2", InWindow: true, MaturityDate: types.MustDate("2024-01-12").Ptr(), RecordDate: types.MustDate("2024-01-11").Ptr()},
			{ISIN: "US0378331005"},
		},
		Malformed: []string{"BAD"},
		Flagged:   1,
	}
	require.NoError(t, l.AppendBatch(res))
	require.NoError(t, l.AppendBatch(res))

	entries := readEntries(t, filepath.Join(dir, "2024-01-10.jsonl"))
	require.Len(t, entries, 4)
	assert.Equal(t, "batch", entries[0].Kind)
	assert.Equal(t, 2, entries[0].Records)
	assert.Equal(t, []string{"BAD"}, entries[0].Rejected)
	assert.Equal(t, "flag", entries[1].Kind)
	assert.Equal(t, "RU000A0JX0J2", entries[1].ISIN)
	assert.Equal(t, "2024-01-11", entries[1].Earliest)
	assert.Equal(t, "2024-01-10 09:30:00", entries[1].Time)
}

func TestNilLogDiscards(t *testing.T) {
	l := New("  ", nil)
	assert.Nil(t, l)
	assert.NoError(t, l.AppendBatch(&types.BatchResult{}))
	assert.NoError(t, l.CompressOlder(7))
}

func TestCompressOlder(t *testing.T) {
	dir := t.TempDir()
	l := New(dir, time.UTC)

	old := filepath.Join(dir, "2023-01-01.jsonl")
	fresh := filepath.Join(dir, "2024-01-10.jsonl")
	require.NoError(t, os.WriteFile(old, []byte("{}\n"), 0o644))
	require.NoError(t, os.WriteFile(fresh, []byte("{}\n"), 0o644))
	past := time.Now().AddDate(0, 0, -30)
	require.NoError(t, os.Chtimes(old, past, past))

	require.NoError(t, l.CompressOlder(7))

	_, err := os.Stat(old)
	assert.True(t, os.IsNotExist(err))
	_, err = os.Stat(old + ".gz")
	assert.NoError(t, err)
	_, err = os.Stat(fresh)
	assert.NoError(t, err)
}
