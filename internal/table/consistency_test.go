package table

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/quicksheet-ai/quicksheet/internal/entity"
)

var _ = Describe("ConsistencyFlags", func() {
	var (
		t       entity.NamedTable
		flagged []int
	)

	JustBeforeEach(func() {
		flagged = ConsistencyFlags(t)
	})

	When("headers are English", func() {
		BeforeEach(func() {
			t = entity.NamedTable{
				Columns: []string{"Item", "Qty", "Unit Price", "Total"},
				Rows: []entity.RowRecord{
					{"Item": "Pen", "Qty": 3.0, "Unit Price": 100.0, "Total": 300.0},
					{"Item": "Pad", "Qty": 3.0, "Unit Price": 100.0, "Total": 250.0},
				},
			}
		})

		It("flags only the row whose product deviates beyond the tolerance", func() {
			Expect(flagged).To(Equal([]int{1}))
		})
	})

	When("headers are Arabic", func() {
		BeforeEach(func() {
			t = entity.NamedTable{
				Columns: []string{"الصنف", "الكمية", "السعر", "الإجمالي"},
				Rows: []entity.RowRecord{
					{"الصنف": "قلم", "الكمية": 2.0, "السعر": 50.0, "الإجمالي": 100.0},
					{"الصنف": "دفتر", "الكمية": 4.0, "السعر": 25.0, "الإجمالي": 80.0},
				},
			}
		})

		It("matches the localized headers and flags the inconsistent row", func() {
			Expect(flagged).To(Equal([]int{1}))
		})
	})

	When("the deviation is exactly the tolerance", func() {
		BeforeEach(func() {
			t = entity.NamedTable{
				Columns: []string{"qty", "price", "total"},
				Rows: []entity.RowRecord{
					{"qty": 3.0, "price": 100.0, "total": 299.0},
				},
			}
		})

		It("does not flag the row", func() {
			Expect(flagged).To(BeEmpty())
		})
	})

	When("numeric values arrive as strings", func() {
		BeforeEach(func() {
			t = entity.NamedTable{
				Columns: []string{"qty", "price", "total"},
				Rows: []entity.RowRecord{
					{"qty": "3", "price": "100", "total": "1,200"},
				},
			}
		})

		It("coerces and flags", func() {
			Expect(flagged).To(Equal([]int{0}))
		})
	})

	When("a required column is missing", func() {
		BeforeEach(func() {
			t = entity.NamedTable{
				Columns: []string{"item", "total"},
				Rows: []entity.RowRecord{
					{"item": "Pen", "total": 300.0},
				},
			}
		})

		It("computes no flags and does not error", func() {
			Expect(flagged).To(BeNil())
		})
	})

	When("a row's cells are not numeric", func() {
		BeforeEach(func() {
			t = entity.NamedTable{
				Columns: []string{"qty", "price", "total"},
				Rows: []entity.RowRecord{
					{"qty": "three", "price": 100.0, "total": 300.0},
					{"qty": 2.0, "price": 100.0, "total": 100.0},
				},
			}
		})

		It("skips the non-numeric row and flags the rest", func() {
			Expect(flagged).To(Equal([]int{1}))
		})
	})
})
