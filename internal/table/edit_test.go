package table

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/quicksheet-ai/quicksheet/internal/common"
	"github.com/quicksheet-ai/quicksheet/internal/entity"
)

var _ = Describe("ApplyEdit", func() {
	var (
		input  entity.NamedTable
		instr  EditInstruction
		result entity.NamedTable
		err    error
	)

	BeforeEach(func() {
		input = entity.NamedTable{
			Name:    "Sheet",
			Columns: []string{"item", "total"},
			Rows: []entity.RowRecord{
				{"item": "Pen", "total": 30.0},
				{"item": "Pad", "total": 10.0},
				{"item": "Ink", "total": 20.0},
			},
		}
	})

	JustBeforeEach(func() {
		result, err = ApplyEdit(input, instr)
	})

	When("sorting ascending by a numeric column", func() {
		BeforeEach(func() {
			instr = EditInstruction{Op: OpSort, Column: "total", Ascending: true}
		})

		It("orders the rows", func() {
			Expect(err).NotTo(HaveOccurred())
			Expect(result.Rows[0]["item"]).To(Equal("Pad"))
			Expect(result.Rows[1]["item"]).To(Equal("Ink"))
			Expect(result.Rows[2]["item"]).To(Equal("Pen"))
		})

		It("does not mutate the input table", func() {
			Expect(input.Rows[0]["item"]).To(Equal("Pen"))
		})
	})

	When("sorting descending", func() {
		BeforeEach(func() {
			instr = EditInstruction{Op: OpSort, Column: "total", Ascending: false}
		})

		It("reverses the order", func() {
			Expect(err).NotTo(HaveOccurred())
			Expect(result.Rows[0]["item"]).To(Equal("Pen"))
		})
	})

	When("filtering with a numeric predicate", func() {
		BeforeEach(func() {
			instr = EditInstruction{Op: OpFilter, Column: "total", Cmp: "gt", Value: 15.0}
		})

		It("keeps only matching rows", func() {
			Expect(err).NotTo(HaveOccurred())
			Expect(result.Rows).To(HaveLen(2))
			Expect(result.Rows[0]["item"]).To(Equal("Pen"))
			Expect(result.Rows[1]["item"]).To(Equal("Ink"))
		})
	})

	When("filtering with contains", func() {
		BeforeEach(func() {
			instr = EditInstruction{Op: OpFilter, Column: "item", Cmp: "contains", Value: "pa"}
		})

		It("matches case-insensitively", func() {
			Expect(err).NotTo(HaveOccurred())
			Expect(result.Rows).To(HaveLen(1))
			Expect(result.Rows[0]["item"]).To(Equal("Pad"))
		})
	})

	When("appending a sum row", func() {
		BeforeEach(func() {
			instr = EditInstruction{Op: OpAppendAggregateRow, Column: "total", Operation: "sum"}
		})

		It("appends one row with the aggregate and a label in the first column", func() {
			Expect(err).NotTo(HaveOccurred())
			Expect(result.Rows).To(HaveLen(4))
			agg := result.Rows[3]
			Expect(agg["total"]).To(Equal(60.0))
			Expect(agg["item"]).To(Equal("SUM"))
		})
	})

	When("appending an avg row", func() {
		BeforeEach(func() {
			instr = EditInstruction{Op: OpAppendAggregateRow, Column: "total", Operation: "avg"}
		})

		It("computes the mean over numeric cells", func() {
			Expect(err).NotTo(HaveOccurred())
			Expect(result.Rows[3]["total"]).To(Equal(20.0))
		})
	})

	When("renaming a column", func() {
		BeforeEach(func() {
			instr = EditInstruction{Op: OpRenameColumn, From: "total", To: "Amount"}
		})

		It("renames the column and moves the cells", func() {
			Expect(err).NotTo(HaveOccurred())
			Expect(result.Columns).To(Equal([]string{"item", "Amount"}))
			Expect(result.Rows[0]).To(HaveKey("Amount"))
			Expect(result.Rows[0]).NotTo(HaveKey("total"))
		})
	})

	When("renaming onto an existing column", func() {
		BeforeEach(func() {
			instr = EditInstruction{Op: OpRenameColumn, From: "total", To: "item"}
		})

		It("fails with ErrInvalidInput", func() {
			Expect(err).To(MatchError(common.ErrInvalidInput))
		})
	})

	When("the operation is not in the vocabulary", func() {
		BeforeEach(func() {
			instr = EditInstruction{Op: "drop_table"}
		})

		It("fails with ErrInvalidInput", func() {
			Expect(err).To(MatchError(common.ErrInvalidInput))
		})
	})

	When("the column does not exist", func() {
		BeforeEach(func() {
			instr = EditInstruction{Op: OpSort, Column: "ghost"}
		})

		It("fails with ErrInvalidInput", func() {
			Expect(err).To(MatchError(common.ErrInvalidInput))
		})
	})
})
