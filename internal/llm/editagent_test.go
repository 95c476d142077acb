package llm

import (
	"context"
	"errors"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/quicksheet-ai/quicksheet/internal/common"
	"github.com/quicksheet-ai/quicksheet/internal/entity"
)

type fakeGenerator struct {
	reply   string
	err     error
	prompts []string
}

func (f *fakeGenerator) Generate(_ context.Context, prompt string) (string, error) {
	f.prompts = append(f.prompts, prompt)
	return f.reply, f.err
}

var _ = Describe("EditAgent", func() {
	var (
		gen    *fakeGenerator
		agent  *EditAgent
		input  entity.NamedTable
		result entity.NamedTable
		err    error
	)

	BeforeEach(func() {
		gen = &fakeGenerator{}
		agent = NewEditAgent(gen, nil)
		input = entity.NamedTable{
			Name:    "Sheet",
			Columns: []string{"item", "total"},
			Rows: []entity.RowRecord{
				{"item": "Pen", "total": 30.0},
				{"item": "Pad", "total": 10.0},
			},
		}
	})

	JustBeforeEach(func() {
		result, err = agent.ApplyEdit(context.Background(), input, "sort by total")
	})

	When("the model answers with a valid sort instruction", func() {
		BeforeEach(func() {
			gen.reply = `{"op": "sort", "column": "total", "ascending": true}`
		})

		It("should not return an error", func() {
			Expect(err).NotTo(HaveOccurred())
		})

		It("should apply the sort", func() {
			Expect(result.Rows[0]["item"]).To(Equal("Pad"))
			Expect(result.Rows[1]["item"]).To(Equal("Pen"))
		})
	})

	When("the instruction object is wrapped in prose and fences", func() {
		BeforeEach(func() {
			gen.reply = "```json\n{\"op\": \"rename_column\", \"from\": \"total\", \"to\": \"Amount\"}\n```\nDone!"
		})

		It("should still find and apply it", func() {
			Expect(err).NotTo(HaveOccurred())
			Expect(result.Columns).To(Equal([]string{"item", "Amount"}))
		})
	})

	When("the model invents an operation outside the vocabulary", func() {
		BeforeEach(func() {
			gen.reply = `{"op": "execute", "code": "import os; os.remove('/')"}`
		})

		It("rejects it at schema validation", func() {
			Expect(err).To(MatchError(common.ErrInvalidInput))
		})
	})

	When("the model references a column the table does not have", func() {
		BeforeEach(func() {
			gen.reply = `{"op": "sort", "column": "ghost", "ascending": true}`
		})

		It("rejects it", func() {
			Expect(err).To(MatchError(common.ErrInvalidInput))
		})
	})

	When("the reply contains no JSON object", func() {
		BeforeEach(func() {
			gen.reply = "I cannot help with that."
		})

		It("returns ErrMalformedJSON", func() {
			Expect(err).To(MatchError(common.ErrMalformedJSON))
		})
	})

	When("the upstream call fails", func() {
		BeforeEach(func() {
			gen.err = errors.New("boom")
		})

		It("propagates the error", func() {
			Expect(err).To(HaveOccurred())
		})
	})
})
