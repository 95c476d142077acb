package llm

import (
	"context"

	"github.com/quicksheet-ai/quicksheet/internal/entity"
)

// Extractor is the interface the pipeline depends on. Given one or more
// images and an instruction, it returns the raw model output text. Each
// call is a metered external request.
type Extractor interface {
	Extract(ctx context.Context, images []entity.ImagePart, instruction string) (string, error)
}

// Generator produces free-form text from a text-only prompt. Used by the
// table-edit agent; kept separate from Extractor so fakes stay small.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}
