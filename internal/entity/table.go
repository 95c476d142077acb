package entity

// RowRecord maps column names to scalar cell values (string, float64 or
// nil). Column sets may differ between records from different images; the
// assembler rectangularizes them.
type RowRecord map[string]any

// NamedTable is an in-memory rectangular table plus a display name, mapped
// 1:1 to a spreadsheet sheet on export. Columns is the union of keys across
// rows, in first-seen order; every row carries a (possibly nil) value for
// every column.
type NamedTable struct {
	Name    string      `json:"name"`
	Columns []string    `json:"columns"`
	Rows    []RowRecord `json:"rows"`

	// InconsistentRows holds indexes of rows whose quantity*price deviates
	// from the stated total by more than the tolerance. Empty when the
	// table exposes no recognizable quantity/price/total columns.
	InconsistentRows []int `json:"inconsistent_rows,omitempty"`
}
