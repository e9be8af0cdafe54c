package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTemp(t *testing.T, name, body string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(p, []byte(body), 0o644))
	return p
}

func TestIdentifiersFromFileISINHeader(t *testing.T) {
	p := writeTemp(t, "basket.csv", "\xef\xbb\xbfName;isin;Qty\nBond A;RU000A0JX0J2;10\nBond B; SU26238RMFS4 ;5\nBond C;;1\n")

	ids, err := identifiersFromFile(p)
	require.NoError(t, err)
	assert.Equal(t, []string{"RU000A0JX0J2", "SU26238RMFS4"}, ids)
}

func TestIdentifiersFromFileDetectsColumn(t *testing.T) {
	p := writeTemp(t, "basket.csv", "code,qty\nRU000A0JX0J2,1\nUS0378331005,2\n")

	ids, err := identifiersFromFile(p)
	require.NoError(t, err)
	assert.Equal(t, []string{"RU000A0JX0J2", "US0378331005"}, ids)
}

func TestIdentifiersFromFileHeaderless(t *testing.T) {
	p := writeTemp(t, "basket.csv", "RU000A0JX0J2;1\nUS0378331005;2\n")

	ids, err := identifiersFromFile(p)
	require.NoError(t, err)
	assert.Equal(t, []string{"RU000A0JX0J2", "US0378331005"}, ids)
}

func TestIdentifiersFromFilePlainText(t *testing.T) {
	p := writeTemp(t, "list.txt", "RU000A0JX0J2\nUS0378331005 GB0002634946\n")

	ids, err := identifiersFromFile(p)
	require.NoError(t, err)
	assert.Equal(t, []string{"RU000A0JX0J2", "US0378331005", "GB0002634946"}, ids)
}

func TestIdentifiersFromFileSpreadsheetRejected(t *testing.T) {
	p := writeTemp(t, "basket.xlsx", "PK")
	_, err := identifiersFromFile(p)
	assert.Error(t, err)
}

func TestSniffDelimiter(t *testing.T) {
	assert.Equal(t, ';', sniffDelimiter("a;b;c"))
	assert.Equal(t, '\t', sniffDelimiter("a\tb"))
	assert.Equal(t, ',', sniffDelimiter("a,b;c,d"))
	assert.Equal(t, ',', sniffDelimiter("single"))
}
