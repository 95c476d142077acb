package table

import (
	"fmt"
	"sort"
	"strings"

	"github.com/quicksheet-ai/quicksheet/internal/common"
	"github.com/quicksheet-ai/quicksheet/internal/entity"
)

// Edit operations. This is the whole vocabulary: the model selects among
// these, it never supplies code.
const (
	OpSort               = "sort"
	OpFilter             = "filter"
	OpAppendAggregateRow = "append_aggregate_row"
	OpRenameColumn       = "rename_column"
)

// Comparison operators for filter predicates.
var filterComparators = map[string]struct{}{
	"eq": {}, "ne": {}, "gt": {}, "ge": {}, "lt": {}, "le": {}, "contains": {},
}

// Aggregate operations for appended rows.
var aggregateOps = map[string]struct{}{
	"sum": {}, "avg": {}, "count": {}, "min": {}, "max": {},
}

// EditInstruction is the tagged transformation a model call selects. Only
// the fields relevant to Op are read.
type EditInstruction struct {
	Op string `json:"op"`

	// sort / filter / append_aggregate_row
	Column string `json:"column,omitempty"`

	// sort
	Ascending bool `json:"ascending,omitempty"`

	// filter
	Cmp   string `json:"cmp,omitempty"`
	Value any    `json:"value,omitempty"`

	// append_aggregate_row
	Operation string `json:"operation,omitempty"`

	// rename_column
	From string `json:"from,omitempty"`
	To   string `json:"to,omitempty"`
}

// ApplyEdit runs one instruction against the table with fixed host logic
// and returns the transformed copy. Unknown operations or columns fail with
// ErrInvalidInput; the input table is never mutated.
func ApplyEdit(t entity.NamedTable, instr EditInstruction) (entity.NamedTable, error) {
	var (
		out entity.NamedTable
		err error
	)
	switch instr.Op {
	case OpSort:
		out, err = applySort(t, instr)
	case OpFilter:
		out, err = applyFilter(t, instr)
	case OpAppendAggregateRow:
		out, err = applyAggregate(t, instr)
	case OpRenameColumn:
		out, err = applyRename(t, instr)
	default:
		return entity.NamedTable{}, fmt.Errorf("%w: unknown edit op %q", common.ErrInvalidInput, instr.Op)
	}
	if err != nil {
		return entity.NamedTable{}, err
	}
	out.InconsistentRows = ConsistencyFlags(out)
	return out, nil
}

func applySort(t entity.NamedTable, instr EditInstruction) (entity.NamedTable, error) {
	if !hasColumn(t, instr.Column) {
		return entity.NamedTable{}, unknownColumn(instr.Column)
	}
	out := cloneTable(t)
	sort.SliceStable(out.Rows, func(i, j int) bool {
		less := cellLess(out.Rows[i][instr.Column], out.Rows[j][instr.Column])
		if instr.Ascending {
			return less
		}
		return cellLess(out.Rows[j][instr.Column], out.Rows[i][instr.Column])
	})
	return out, nil
}

func applyFilter(t entity.NamedTable, instr EditInstruction) (entity.NamedTable, error) {
	if !hasColumn(t, instr.Column) {
		return entity.NamedTable{}, unknownColumn(instr.Column)
	}
	if _, ok := filterComparators[instr.Cmp]; !ok {
		return entity.NamedTable{}, fmt.Errorf("%w: unknown comparator %q", common.ErrInvalidInput, instr.Cmp)
	}
	out := cloneTable(t)
	kept := out.Rows[:0]
	for _, row := range out.Rows {
		if matchPredicate(row[instr.Column], instr.Cmp, instr.Value) {
			kept = append(kept, row)
		}
	}
	out.Rows = kept
	return out, nil
}

func applyAggregate(t entity.NamedTable, instr EditInstruction) (entity.NamedTable, error) {
	if !hasColumn(t, instr.Column) {
		return entity.NamedTable{}, unknownColumn(instr.Column)
	}
	if _, ok := aggregateOps[instr.Operation]; !ok {
		return entity.NamedTable{}, fmt.Errorf("%w: unknown aggregate %q", common.ErrInvalidInput, instr.Operation)
	}

	var (
		sum   float64
		count int
		minV  float64
		maxV  float64
	)
	for _, row := range t.Rows {
		v, ok := numericCell(row[instr.Column])
		if !ok {
			continue
		}
		if count == 0 || v < minV {
			minV = v
		}
		if count == 0 || v > maxV {
			maxV = v
		}
		sum += v
		count++
	}

	var result any
	switch instr.Operation {
	case "sum":
		result = sum
	case "avg":
		if count > 0 {
			result = sum / float64(count)
		}
	case "count":
		result = float64(count)
	case "min":
		if count > 0 {
			result = minV
		}
	case "max":
		if count > 0 {
			result = maxV
		}
	}

	out := cloneTable(t)
	agg := make(entity.RowRecord, len(out.Columns))
	for _, c := range out.Columns {
		agg[c] = nil
	}
	agg[instr.Column] = result
	if len(out.Columns) > 0 && out.Columns[0] != instr.Column {
		agg[out.Columns[0]] = strings.ToUpper(instr.Operation)
	}
	out.Rows = append(out.Rows, agg)
	return out, nil
}

func applyRename(t entity.NamedTable, instr EditInstruction) (entity.NamedTable, error) {
	if !hasColumn(t, instr.From) {
		return entity.NamedTable{}, unknownColumn(instr.From)
	}
	to := strings.TrimSpace(instr.To)
	if to == "" {
		return entity.NamedTable{}, fmt.Errorf("%w: rename target is empty", common.ErrInvalidInput)
	}
	if to != instr.From && hasColumn(t, to) {
		return entity.NamedTable{}, fmt.Errorf("%w: column %q already exists", common.ErrInvalidInput, to)
	}
	out := cloneTable(t)
	for i, c := range out.Columns {
		if c == instr.From {
			out.Columns[i] = to
		}
	}
	for _, row := range out.Rows {
		row[to] = row[instr.From]
		delete(row, instr.From)
	}
	return out, nil
}

func hasColumn(t entity.NamedTable, name string) bool {
	for _, c := range t.Columns {
		if c == name {
			return true
		}
	}
	return false
}

func unknownColumn(name string) error {
	return fmt.Errorf("%w: unknown column %q", common.ErrInvalidInput, name)
}

func cloneTable(t entity.NamedTable) entity.NamedTable {
	columns := append([]string(nil), t.Columns...)
	rows := make([]entity.RowRecord, len(t.Rows))
	for i, row := range t.Rows {
		cp := make(entity.RowRecord, len(row))
		for k, v := range row {
			cp[k] = v
		}
		rows[i] = cp
	}
	return entity.NamedTable{Name: t.Name, Columns: columns, Rows: rows}
}

// cellLess orders cells: nil first, then numerics, then strings.
func cellLess(a, b any) bool {
	an, aNum := numericCell(a)
	bn, bNum := numericCell(b)
	switch {
	case a == nil && b == nil:
		return false
	case a == nil:
		return true
	case b == nil:
		return false
	case aNum && bNum:
		return an < bn
	case aNum:
		return true
	case bNum:
		return false
	default:
		return fmt.Sprintf("%v", a) < fmt.Sprintf("%v", b)
	}
}

func matchPredicate(cell any, cmp string, value any) bool {
	if cmp == "contains" {
		return strings.Contains(
			strings.ToLower(fmt.Sprintf("%v", cell)),
			strings.ToLower(fmt.Sprintf("%v", value)),
		)
	}

	cn, cNum := numericCell(cell)
	vn, vNum := numericCell(value)
	if cNum && vNum {
		switch cmp {
		case "eq":
			return cn == vn
		case "ne":
			return cn != vn
		case "gt":
			return cn > vn
		case "ge":
			return cn >= vn
		case "lt":
			return cn < vn
		case "le":
			return cn <= vn
		}
		return false
	}

	cs := fmt.Sprintf("%v", cell)
	vs := fmt.Sprintf("%v", value)
	switch cmp {
	case "eq":
		return cs == vs
	case "ne":
		return cs != vs
	case "gt":
		return cs > vs
	case "ge":
		return cs >= vs
	case "lt":
		return cs < vs
	case "le":
		return cs <= vs
	}
	return false
}
