package table

import (
	"math"
	"strconv"
	"strings"
	"unicode"

	"github.com/quicksheet-ai/quicksheet/constants"
	"github.com/quicksheet-ai/quicksheet/internal/entity"
)

// ConsistencyFlags returns the indexes of rows whose quantity*price product
// deviates from the stated total by more than the tolerance. When the table
// exposes no recognizable quantity/price/total columns the result is nil —
// absent columns are not an error.
func ConsistencyFlags(t entity.NamedTable) []int {
	qtyCol, ok := matchColumn(t.Columns, constants.QuantityHeaders)
	if !ok {
		return nil
	}
	priceCol, ok := matchColumn(t.Columns, constants.PriceHeaders)
	if !ok {
		return nil
	}
	totalCol, ok := matchColumn(t.Columns, constants.TotalHeaders)
	if !ok || totalCol == priceCol || totalCol == qtyCol {
		return nil
	}

	var flagged []int
	for i, row := range t.Rows {
		qty, okQ := numericCell(row[qtyCol])
		price, okP := numericCell(row[priceCol])
		total, okT := numericCell(row[totalCol])
		if !okQ || !okP || !okT {
			continue
		}
		if math.Abs(qty*price-total) > constants.ConsistencyTolerance {
			flagged = append(flagged, i)
		}
	}
	return flagged
}

// matchColumn finds the first column whose normalized header contains one
// of the synonyms (or vice versa). Substring match, case- and
// diacritic-naive.
func matchColumn(columns []string, synonyms []string) (string, bool) {
	for _, syn := range synonyms {
		ns := normalizeHeader(syn)
		for _, col := range columns {
			nc := normalizeHeader(col)
			if nc == "" {
				continue
			}
			if strings.Contains(nc, ns) || strings.Contains(ns, nc) {
				return col, true
			}
		}
	}
	return "", false
}

// normalizeHeader lowercases, trims and strips Arabic diacritics and
// tatweel so "الكميّة" matches "الكمية".
func normalizeHeader(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	return strings.Map(func(r rune) rune {
		// Arabic harakat and Quranic marks
		if r >= 0x064B && r <= 0x065F {
			return -1
		}
		if r == 0x0640 { // tatweel
			return -1
		}
		if unicode.Is(unicode.Mn, r) {
			return -1
		}
		return r
	}, s)
}

// numericCell coerces a cell to float64. Numeric strings count; grouping
// commas and surrounding whitespace are tolerated.
func numericCell(v any) (float64, bool) {
	switch t := v.(type) {
	case float64:
		return t, true
	case string:
		s := strings.TrimSpace(strings.ReplaceAll(t, ",", ""))
		if s == "" {
			return 0, false
		}
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return 0, false
		}
		return f, true
	default:
		return 0, false
	}
}
