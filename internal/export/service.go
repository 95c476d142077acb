package export

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/quicksheet-ai/quicksheet/internal/common"
	"github.com/quicksheet-ai/quicksheet/internal/entity"
)

const colPadding = 2

// Service serializes named tables into a single XLSX workbook.
type Service struct {
	logger *slog.Logger
}

func NewService(logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{logger: logger}
}

// BuildWorkbook returns XLSX bytes with one sheet per table: header row
// first, data rows in input order, column widths sized to content. Names
// are expected pre-sanitized by the assembler.
func (s *Service) BuildWorkbook(tables []entity.NamedTable) ([]byte, error) {
	start := time.Now()

	f := excelize.NewFile()
	defer func() {
		if err := f.Close(); err != nil {
			s.logger.Warn("export.xlsx.close_error", "error", err)
		}
	}()

	for _, t := range tables {
		if err := s.writeSheet(f, t); err != nil {
			return nil, fmt.Errorf("%w: sheet %q: %v", common.ErrExport, t.Name, err)
		}
	}

	// drop excelize's default sheet unless a table claimed the name
	if len(tables) > 0 {
		claimed := false
		for _, t := range tables {
			if t.Name == "Sheet1" {
				claimed = true
				break
			}
		}
		if idx, _ := f.GetSheetIndex("Sheet1"); idx != -1 && !claimed {
			if err := f.DeleteSheet("Sheet1"); err != nil {
				return nil, fmt.Errorf("%w: %v", common.ErrExport, err)
			}
		}
		if idx, _ := f.GetSheetIndex(tables[0].Name); idx != -1 {
			f.SetActiveSheet(idx)
		}
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrExport, err)
	}

	s.logger.Info("export.xlsx.ok",
		"sheets", len(tables),
		"bytes", buf.Len(),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return buf.Bytes(), nil
}

func (s *Service) writeSheet(f *excelize.File, t entity.NamedTable) error {
	if _, err := f.NewSheet(t.Name); err != nil {
		return err
	}

	widths := make([]int, len(t.Columns))
	for i, h := range t.Columns {
		cell, err := excelize.CoordinatesToCellName(i+1, 1)
		if err != nil {
			return err
		}
		if err := f.SetCellValue(t.Name, cell, h); err != nil {
			return err
		}
		widths[i] = len([]rune(h))
	}

	for r, row := range t.Rows {
		for c, col := range t.Columns {
			v := row[col]
			if v == nil {
				continue
			}
			cell, err := excelize.CoordinatesToCellName(c+1, r+2)
			if err != nil {
				return err
			}
			if err := f.SetCellValue(t.Name, cell, v); err != nil {
				return err
			}
			if n := len([]rune(renderCell(v))); n > widths[c] {
				widths[c] = n
			}
		}
	}

	for i := range t.Columns {
		col, err := excelize.ColumnNumberToName(i + 1)
		if err != nil {
			return err
		}
		if err := f.SetColWidth(t.Name, col, col, float64(widths[i]+colPadding)); err != nil {
			return err
		}
	}
	return nil
}

// renderCell approximates the displayed width of a cell value.
func renderCell(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case float64:
		if t == float64(int64(t)) {
			return fmt.Sprintf("%d", int64(t))
		}
		return fmt.Sprintf("%v", t)
	default:
		return fmt.Sprintf("%v", t)
	}
}
