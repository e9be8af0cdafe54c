package isin

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

// Reference identifiers with independently published check digits.
var knownValid = []string{
	"US0378331005",
	"US5949181045",
	"AU0000XVGZA3", // odd-length expansion, catches left-to-right parity
	"GB0002634946",
	"US38259P5089",
	"DE0005557508",
	"RU0007661625",
	"RU000A0JX0J2",
	"RU000A0ZYJT2",
	"RU000A1006C3",
	"RU000A101QE0",
	"RU000A105KN5",
	"SU26238RMFS4",
	"SU26207RMFS9",
	"XS1234567896",
}

var knownBadChecksum = []string{
	"US0378331006",
	"AU0000XVGZA4",
	"RU000A0JX0J3",
	"RU000A0ZZZY1",
	"GB0002634940",
}

func TestIsChecksumValidReferenceSet(t *testing.T) {
	for _, id := range knownValid {
		t.Run(id, func(t *testing.T) {
			assert.True(t, IsWellFormed(id))
			assert.True(t, IsChecksumValid(id))
		})
	}
	for _, id := range knownBadChecksum {
		t.Run(id, func(t *testing.T) {
			assert.True(t, IsWellFormed(id))
			assert.False(t, IsChecksumValid(id))
		})
	}
}

func TestIsWellFormed(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want bool
	}{
		{"empty", "", false},
		{"short", "US037833100", false},
		{"long", "US03783310055", false},
		{"lowercase", "us0378331005", false},
		{"digit country", "1S0378331005", false},
		{"letter check digit", "US037833100A", false},
		{"punctuation", "US03783-1005", false},
		{"cyrillic", "RU000А0JX0J2", false},
		{"valid", "RU000A0JX0J2", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsWellFormed(tt.in))
			if !tt.want {
				assert.False(t, IsChecksumValid(tt.in))
			}
		})
	}
}

func TestPartition(t *testing.T) {
	raw := Split("us0378331005, RU000A0JX0J2;RU000A0JX0J3\nbogus  US0378331005\t AU0000XVGZA3")
	rep := Partition(raw)

	assert.Equal(t, []string{"US0378331005", "RU000A0JX0J2", "AU0000XVGZA3"}, rep.Valid)
	assert.Equal(t, []string{"BOGUS"}, rep.Malformed)
	assert.Equal(t, []string{"RU000A0JX0J3"}, rep.BadChecksum)
	assert.Equal(t, 1, rep.Duplicates)
	assert.Equal(t, []string{"BOGUS", "RU000A0JX0J3"}, rep.Rejected())
}

func TestPartitionEmpty(t *testing.T) {
	rep := Partition(nil)
	assert.Empty(t, rep.Valid)
	assert.Empty(t, rep.Rejected())
}
