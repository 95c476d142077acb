package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/quicksheet-ai/quicksheet/internal/common"
	"github.com/quicksheet-ai/quicksheet/internal/entity"
	"github.com/quicksheet-ai/quicksheet/internal/table"
)

// EditAgent translates a natural-language edit instruction into one entry
// of the closed transformation vocabulary and applies it with the fixed
// interpreter. The model output is validated against a JSON Schema before
// it is decoded; model-produced code is never executed.
type EditAgent struct {
	gen    Generator
	logger *slog.Logger
}

func NewEditAgent(gen Generator, logger *slog.Logger) *EditAgent {
	if logger == nil {
		logger = slog.Default()
	}
	return &EditAgent{gen: gen, logger: logger}
}

// ApplyEdit asks the model to pick a transformation for the instruction and
// returns the edited table.
func (a *EditAgent) ApplyEdit(ctx context.Context, t entity.NamedTable, instruction string) (entity.NamedTable, error) {
	rid := uuid.New().String()
	start := time.Now()

	a.logger.Info("edit.agent.start",
		"req_id", rid,
		"table", t.Name,
		"columns", len(t.Columns),
		"rows", len(t.Rows),
	)

	raw, err := a.gen.Generate(ctx, buildEditPrompt(t, instruction))
	if err != nil {
		a.logger.Error("edit.agent.upstream_error",
			"req_id", rid, "error", err, "elapsed_ms", time.Since(start).Milliseconds())
		return entity.NamedTable{}, err
	}

	span, ok := objectSpan(raw)
	if !ok {
		a.logger.Error("edit.agent.no_json", "req_id", rid, "raw_len", len(raw))
		return entity.NamedTable{}, fmt.Errorf("%w: no instruction object in model output", common.ErrMalformedJSON)
	}

	schema := BuildEditInstructionSchema(t.Columns)
	if err := ValidateJSONAgainstSchema(schema, []byte(span)); err != nil {
		a.logger.Error("edit.agent.schema_validation_failed",
			"req_id", rid, "error", err, "content", span)
		return entity.NamedTable{}, fmt.Errorf("%w: %v", common.ErrInvalidInput, err)
	}

	var instr table.EditInstruction
	if err := json.Unmarshal([]byte(span), &instr); err != nil {
		return entity.NamedTable{}, fmt.Errorf("%w: %v", common.ErrMalformedJSON, err)
	}

	out, err := table.ApplyEdit(t, instr)
	if err != nil {
		a.logger.Error("edit.agent.apply_failed", "req_id", rid, "op", instr.Op, "error", err)
		return entity.NamedTable{}, err
	}

	a.logger.Info("edit.agent.ok",
		"req_id", rid,
		"op", instr.Op,
		"rows_out", len(out.Rows),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return out, nil
}

// buildEditPrompt describes the vocabulary and the table schema. The model
// answers with a single instruction object, nothing else.
func buildEditPrompt(t entity.NamedTable, instruction string) string {
	cols, _ := json.Marshal(t.Columns)
	parts := []string{
		"You translate a table-edit request into exactly ONE JSON instruction object.",
		"The table has these columns: " + string(cols) + ".",
		"Allowed instruction shapes:",
		`{"op":"sort","column":"<col>","ascending":true|false}`,
		`{"op":"filter","column":"<col>","cmp":"eq|ne|gt|ge|lt|le|contains","value":<scalar>}`,
		`{"op":"append_aggregate_row","column":"<col>","operation":"sum|avg|count|min|max"}`,
		`{"op":"rename_column","from":"<col>","to":"<new name>"}`,
		"Column names must be copied exactly from the column list.",
		"Return ONLY the JSON object, with no explanation and no markdown fences.",
		"Request: " + strings.TrimSpace(instruction),
	}
	return strings.Join(parts, "\n")
}

// objectSpan returns the substring from the first '{' to its matching '}',
// tracking nesting depth and string literals. Same scan as arraySpan, for
// the single-object reply the edit agent expects.
func objectSpan(s string) (string, bool) {
	start := -1
	depth := 0
	inString := false
	escaped := false

	for i := 0; i < len(s); i++ {
		c := s[i]
		if start == -1 {
			if c == '{' {
				start = i
				depth = 1
			}
			continue
		}
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return s[start : i+1], true
			}
		}
	}
	return "", false
}
