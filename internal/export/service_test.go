package export

import (
	"bytes"
	"testing"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/xuri/excelize/v2"

	"github.com/quicksheet-ai/quicksheet/internal/entity"
)

func TestExport(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Export Suite")
}

var _ = Describe("BuildWorkbook", func() {
	var (
		svc    *Service
		tables []entity.NamedTable
		data   []byte
		err    error
	)

	BeforeEach(func() {
		svc = NewService(nil)
	})

	JustBeforeEach(func() {
		data, err = svc.BuildWorkbook(tables)
	})

	openWorkbook := func() *excelize.File {
		f, openErr := excelize.OpenReader(bytes.NewReader(data))
		Expect(openErr).NotTo(HaveOccurred())
		return f
	}

	When("two tables are exported", func() {
		BeforeEach(func() {
			tables = []entity.NamedTable{
				{
					Name:    "receipt-march",
					Columns: []string{"item", "qty", "total"},
					Rows: []entity.RowRecord{
						{"item": "Pen", "qty": 3.0, "total": 30.0},
						{"item": "Pad", "qty": 1.0, "total": 10.0},
					},
				},
				{
					Name:    "receipt-april",
					Columns: []string{"item"},
					Rows:    []entity.RowRecord{{"item": "Ink"}},
				},
			}
		})

		It("should not return an error", func() {
			Expect(err).NotTo(HaveOccurred())
		})

		It("creates one sheet per table and drops the default sheet", func() {
			f := openWorkbook()
			defer f.Close()
			Expect(f.GetSheetList()).To(Equal([]string{"receipt-march", "receipt-april"}))
		})

		It("writes the header row followed by data rows in order", func() {
			f := openWorkbook()
			defer f.Close()
			rows, readErr := f.GetRows("receipt-march")
			Expect(readErr).NotTo(HaveOccurred())
			Expect(rows).To(HaveLen(3))
			Expect(rows[0]).To(Equal([]string{"item", "qty", "total"}))
			Expect(rows[1][0]).To(Equal("Pen"))
			Expect(rows[2][0]).To(Equal("Pad"))
		})

		It("sizes each column to its widest cell plus padding", func() {
			f := openWorkbook()
			defer f.Close()
			w, widthErr := f.GetColWidth("receipt-march", "A")
			Expect(widthErr).NotTo(HaveOccurred())
			// widest of "item" (4) and the values, plus padding
			Expect(w).To(BeNumerically("==", 6))
		})
	})

	When("a later table claims the default sheet name", func() {
		BeforeEach(func() {
			tables = []entity.NamedTable{
				{
					Name:    "a",
					Columns: []string{"x"},
					Rows:    []entity.RowRecord{{"x": 1.0}},
				},
				{
					Name:    "Sheet1",
					Columns: []string{"item"},
					Rows:    []entity.RowRecord{{"item": "Pen"}},
				},
			}
		})

		It("keeps every table's sheet", func() {
			Expect(err).NotTo(HaveOccurred())
			f := openWorkbook()
			defer f.Close()
			Expect(f.GetSheetList()).To(ConsistOf("a", "Sheet1"))
		})

		It("keeps the claimed sheet's rows intact", func() {
			f := openWorkbook()
			defer f.Close()
			rows, readErr := f.GetRows("Sheet1")
			Expect(readErr).NotTo(HaveOccurred())
			Expect(rows).To(HaveLen(2))
			Expect(rows[0]).To(Equal([]string{"item"}))
			Expect(rows[1][0]).To(Equal("Pen"))
		})
	})

	When("a cell holds a nil value", func() {
		BeforeEach(func() {
			tables = []entity.NamedTable{{
				Name:    "sparse",
				Columns: []string{"a", "b"},
				Rows:    []entity.RowRecord{{"a": "x", "b": nil}},
			}}
		})

		It("leaves the cell empty", func() {
			Expect(err).NotTo(HaveOccurred())
			f := openWorkbook()
			defer f.Close()
			v, cellErr := f.GetCellValue("sparse", "B2")
			Expect(cellErr).NotTo(HaveOccurred())
			Expect(v).To(BeEmpty())
		})
	})

	When("no tables are given", func() {
		BeforeEach(func() {
			tables = nil
		})

		It("still produces a readable workbook", func() {
			Expect(err).NotTo(HaveOccurred())
			f := openWorkbook()
			defer f.Close()
			Expect(f.GetSheetList()).NotTo(BeEmpty())
		})
	})
})
