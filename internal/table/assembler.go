package table

import (
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"github.com/quicksheet-ai/quicksheet/constants"
	"github.com/quicksheet-ai/quicksheet/internal/entity"
)

// MergedTableName labels the combined table when a merge directive is in
// effect.
const MergedTableName = "Merged"

// Source is one image's contribution to assembly: the decoded rows plus
// the column order recovered from the model output.
type Source struct {
	Label   string
	Columns []string
	Rows    []entity.RowRecord
}

// Assemble merges or splits per-image row records into named tables.
//
// With merge, all rows flatten into one table named MergedTableName whose
// column set is the union across sources in first-seen order. Without it,
// each source with rows becomes its own table named from its sanitized
// label. Sources with no rows contribute nothing; if every source is empty
// the result is an empty slice, not an error.
func Assemble(sources []Source, merge bool) []entity.NamedTable {
	if merge {
		var rows []entity.RowRecord
		var columns []string
		seen := make(map[string]struct{})
		for _, src := range sources {
			rows = append(rows, src.Rows...)
			for _, c := range orderedColumns(src) {
				if _, dup := seen[c]; !dup {
					seen[c] = struct{}{}
					columns = append(columns, c)
				}
			}
		}
		if len(rows) == 0 {
			return nil
		}
		t := buildTable(MergedTableName, columns, rows)
		t.InconsistentRows = ConsistencyFlags(t)
		return []entity.NamedTable{t}
	}

	var tables []entity.NamedTable
	used := make(map[string]int)
	for _, src := range sources {
		if len(src.Rows) == 0 {
			continue
		}
		name := uniqueName(SanitizeSheetName(src.Label), used)
		t := buildTable(name, orderedColumns(src), src.Rows)
		t.InconsistentRows = ConsistencyFlags(t)
		tables = append(tables, t)
	}
	return tables
}

// orderedColumns returns the source's declared column order extended with
// any stray row keys (sorted, for determinism) it does not cover.
func orderedColumns(src Source) []string {
	columns := make([]string, 0, len(src.Columns))
	seen := make(map[string]struct{}, len(src.Columns))
	for _, c := range src.Columns {
		if _, dup := seen[c]; !dup {
			seen[c] = struct{}{}
			columns = append(columns, c)
		}
	}
	var stray []string
	for _, row := range src.Rows {
		for k := range row {
			if _, ok := seen[k]; !ok {
				seen[k] = struct{}{}
				stray = append(stray, k)
			}
		}
	}
	sort.Strings(stray)
	return append(columns, stray...)
}

// buildTable rectangularizes rows: every row gets a defined (possibly nil)
// value for every column.
func buildTable(name string, columns []string, rows []entity.RowRecord) entity.NamedTable {
	out := make([]entity.RowRecord, len(rows))
	for i, row := range rows {
		filled := make(entity.RowRecord, len(columns))
		for _, c := range columns {
			if v, ok := row[c]; ok {
				filled[c] = v
			} else {
				filled[c] = nil
			}
		}
		out[i] = filled
	}
	return entity.NamedTable{Name: name, Columns: columns, Rows: out}
}

// SanitizeSheetName strips the extension and the characters XLSX forbids in
// sheet names, then truncates to the 31-rune limit.
func SanitizeSheetName(label string) string {
	name := strings.TrimSuffix(label, filepath.Ext(label))
	name = strings.Map(func(r rune) rune {
		if strings.ContainsRune(constants.SheetNameIllegalChars, r) {
			return -1
		}
		return r
	}, name)
	name = strings.TrimSpace(name)
	if name == "" {
		name = "Sheet"
	}
	runes := []rune(name)
	if len(runes) > constants.SheetNameMaxLen {
		name = string(runes[:constants.SheetNameMaxLen])
	}
	return name
}

// uniqueName suffixes duplicate sheet names so excelize does not reject
// the second occurrence, keeping the result within the name limit.
func uniqueName(name string, used map[string]int) string {
	if _, taken := used[name]; !taken {
		used[name] = 1
		return name
	}
	for {
		used[name]++
		suffix := fmt.Sprintf(" (%d)", used[name])
		runes := []rune(name)
		if len(runes)+len(suffix) > constants.SheetNameMaxLen {
			runes = runes[:constants.SheetNameMaxLen-len(suffix)]
		}
		candidate := string(runes) + suffix
		if _, taken := used[candidate]; !taken {
			used[candidate] = 1
			return candidate
		}
	}
}
