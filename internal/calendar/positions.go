package calendar

import (
	"regexp"
	"strings"

	"github.com/shopspring/decimal"

	"repo-pretrade/internal/isin"
	"repo-pretrade/internal/types"
)

// lineRe takes the identifier and everything after the first separator as
// the amount, so "1 000,50" survives intact.
var lineRe = regexp.MustCompile(`^\s*([A-Za-z0-9]+)\s*(?:[|;,/\t\s]\s*(.*))?$`)

// ParsePositions reads "IDENTIFIER | AMOUNT" lines. A missing, unparsable
// or non-positive amount counts as 1. Repeated identifiers are summed in
// first-seen order. Lines whose identifier is not a valid ISIN are
// returned as invalid.
func ParsePositions(text string) ([]types.Position, []string) {
	var (
		positions []types.Position
		invalid   []string
		index     = map[string]int{}
	)
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		m := lineRe.FindStringSubmatch(line)
		if m == nil {
			invalid = append(invalid, line)
			continue
		}
		id := isin.Normalize(m[1])
		if id == "ISIN" {
			continue
		}
		if !isin.Valid(id) {
			invalid = append(invalid, id)
			continue
		}
		amount := parseAmount(m[2])
		if i, ok := index[id]; ok {
			positions[i].Amount = positions[i].Amount.Add(amount)
			continue
		}
		index[id] = len(positions)
		positions = append(positions, types.Position{ISIN: id, Amount: amount})
	}
	return positions, invalid
}

func parseAmount(s string) decimal.Decimal {
	v, ok := types.ParseDecimal(strings.Trim(s, " |;,/\t"))
	if !ok || !v.IsPositive() {
		return decimal.NewFromInt(1)
	}
	return v
}
