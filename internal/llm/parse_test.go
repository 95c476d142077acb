package llm

import (
	"testing"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/quicksheet-ai/quicksheet/internal/common"
	"github.com/quicksheet-ai/quicksheet/internal/entity"
)

func TestLLM(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "LLM Suite")
}

var _ = Describe("DecodeRows", func() {
	var (
		raw     string
		rows    []entity.RowRecord
		columns []string
		err     error
	)

	JustBeforeEach(func() {
		rows, columns, err = DecodeRows(raw)
	})

	When("the array is surrounded by prose", func() {
		BeforeEach(func() {
			raw = "Sure! Here is the extracted data:\n" +
				`[{"item": "Pen", "qty": 3}, {"item": "Pad", "qty": 1}]` +
				"\nLet me know if you need anything else."
		})

		It("should not return an error", func() {
			Expect(err).NotTo(HaveOccurred())
		})

		It("should recover exactly the array's records", func() {
			Expect(rows).To(HaveLen(2))
			Expect(rows[0]["item"]).To(Equal("Pen"))
			Expect(rows[0]["qty"]).To(Equal(3.0))
			Expect(rows[1]["item"]).To(Equal("Pad"))
		})
	})

	When("the array is wrapped in markdown fences", func() {
		BeforeEach(func() {
			raw = "```json\n[{\"a\": 1}]\n```"
		})

		It("should decode the fenced array", func() {
			Expect(err).NotTo(HaveOccurred())
			Expect(rows).To(HaveLen(1))
			Expect(rows[0]["a"]).To(Equal(1.0))
		})
	})

	When("object values contain nested arrays and trailing prose has brackets", func() {
		BeforeEach(func() {
			raw = `The rows: [{"name": "A", "tags": ["x", "y"]}] (see [docs] for details)`
		})

		It("should not truncate at the inner close bracket", func() {
			Expect(err).NotTo(HaveOccurred())
			Expect(rows).To(HaveLen(1))
			Expect(rows[0]["name"]).To(Equal("A"))
		})

		It("should flatten the nested array to a JSON string cell", func() {
			Expect(rows[0]["tags"]).To(Equal(`["x","y"]`))
		})
	})

	When("a string value contains brackets", func() {
		BeforeEach(func() {
			raw = `[{"note": "size [large]", "n": 2}]`
		})

		It("should keep scanning past the bracket inside the string", func() {
			Expect(err).NotTo(HaveOccurred())
			Expect(rows[0]["note"]).To(Equal("size [large]"))
		})
	})

	When("column order differs from lexical order", func() {
		BeforeEach(func() {
			raw = `[{"zeta": 1, "alpha": 2}, {"alpha": 3, "mid": 4}]`
		})

		It("should report columns in first-seen document order", func() {
			Expect(err).NotTo(HaveOccurred())
			Expect(columns).To(Equal([]string{"zeta", "alpha", "mid"}))
		})
	})

	When("the array mixes objects and stray scalars", func() {
		BeforeEach(func() {
			raw = `[{"a": 1}, "noise", {"a": 2}]`
		})

		It("should keep only the objects", func() {
			Expect(err).NotTo(HaveOccurred())
			Expect(rows).To(HaveLen(2))
		})
	})

	When("there is no bracketed span at all", func() {
		BeforeEach(func() {
			raw = "I could not find any table in this image."
		})

		It("returns ErrNoJSONFound", func() {
			Expect(err).To(MatchError(common.ErrNoJSONFound))
		})
	})

	When("the span does not decode", func() {
		BeforeEach(func() {
			raw = `[{"a": 1,]`
		})

		It("returns ErrMalformedJSON", func() {
			Expect(err).To(MatchError(common.ErrMalformedJSON))
		})
	})

	When("the opening bracket is never closed", func() {
		BeforeEach(func() {
			raw = `result: [{"a": 1}`
		})

		It("returns ErrMalformedJSON rather than no-json", func() {
			Expect(err).To(MatchError(common.ErrMalformedJSON))
		})
	})

	When("the decoded value is an empty array", func() {
		BeforeEach(func() {
			raw = "no rows found: []"
		})

		It("returns zero rows and no error", func() {
			Expect(err).NotTo(HaveOccurred())
			Expect(rows).To(BeEmpty())
		})
	})

	When("null cells appear", func() {
		BeforeEach(func() {
			raw = `[{"a": null, "b": "x"}]`
		})

		It("keeps them as nil values", func() {
			Expect(err).NotTo(HaveOccurred())
			Expect(rows[0]).To(HaveKey("a"))
			Expect(rows[0]["a"]).To(BeNil())
		})
	})
})
