package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/quicksheet-ai/quicksheet/constants"
	"github.com/quicksheet-ai/quicksheet/internal/common"
	"github.com/quicksheet-ai/quicksheet/internal/entity"
	"github.com/quicksheet-ai/quicksheet/internal/export"
	"github.com/quicksheet-ai/quicksheet/internal/llm"
	"github.com/quicksheet-ai/quicksheet/internal/quota"
	"github.com/quicksheet-ai/quicksheet/internal/repository"
	"github.com/quicksheet-ai/quicksheet/internal/table"
)

// Warning records a per-image degradation that did not abort the batch.
type Warning struct {
	Source string `json:"source"`
	Reason string `json:"reason"`
}

// Result is the outcome of one extraction run. A finished workbook is
// reported even when the ledger update failed; LedgerUpdated tells the
// caller whether accounting went through.
type Result struct {
	Tables        []entity.NamedTable
	Workbook      []byte
	Warnings      []Warning
	ExternalCalls int
	LedgerUpdated bool
}

// Processor coordinates quota check, model extraction, decoding, assembly,
// export and usage accounting for one request.
type Processor struct {
	logger      *slog.Logger
	gate        *quota.Gate
	extractor   llm.Extractor
	exporter    *export.Service
	accounts    repository.AccountRepository
	concurrency int
}

func NewProcessor(
	gate *quota.Gate,
	extractor llm.Extractor,
	exporter *export.Service,
	accounts repository.AccountRepository,
	concurrency int,
	logger *slog.Logger,
) *Processor {
	if logger == nil {
		logger = slog.Default()
	}
	if concurrency <= 0 {
		concurrency = 4
	}
	return &Processor{
		logger:      logger,
		gate:        gate,
		extractor:   extractor,
		exporter:    exporter,
		accounts:    accounts,
		concurrency: concurrency,
	}
}

// DetectMergeDirective reports whether the user note contains a merge
// keyword (Arabic or English), matched as a substring of the lowercased
// note.
func DetectMergeDirective(note string) bool {
	n := strings.ToLower(note)
	for _, kw := range constants.MergeKeywords {
		if strings.Contains(n, kw) {
			return true
		}
	}
	return false
}

// Run executes the pipeline for an authorized account. Per-image parse
// failures degrade to warnings; the batch proceeds with what decoded.
func (p *Processor) Run(ctx context.Context, account *entity.Account, req entity.ExtractionRequest) (*Result, error) {
	start := time.Now()

	if err := p.gate.Authorize(account, len(req.Images)); err != nil {
		p.logger.Warn("pipeline.denied",
			"identifier", account.Identifier,
			"usage_count", account.UsageCount,
			"images", len(req.Images),
			"reason", err,
		)
		return nil, err
	}

	p.logger.Info("pipeline.run.start",
		"req_id", common.RequestIDFromContext(ctx),
		"identifier", account.Identifier,
		"images", len(req.Images),
		"merge", req.MergeRequested,
	)

	res := &Result{LedgerUpdated: true}
	var sources []table.Source
	var err error
	if req.MergeRequested {
		sources, err = p.extractMerged(ctx, req, res)
	} else {
		sources, err = p.extractEach(ctx, req, res)
	}
	if err != nil {
		return nil, err
	}

	res.Tables = table.Assemble(sources, req.MergeRequested)
	if len(res.Tables) == 0 {
		// nothing decoded anywhere: "no data", not an exception
		p.logger.Warn("pipeline.run.empty",
			"identifier", account.Identifier,
			"warnings", len(res.Warnings),
		)
		return res, nil
	}

	res.Workbook, err = p.exporter.BuildWorkbook(res.Tables)
	if err != nil {
		return nil, err
	}

	// Free-tier accounting happens last: a failed write must not take the
	// finished workbook down with it.
	if !account.IsPremium() {
		if err := p.accounts.IncrementUsage(ctx, account.Identifier, len(req.Images)); err != nil {
			lerr := fmt.Errorf("%w: %v", common.ErrLedgerWrite, err)
			p.logger.Error("pipeline.ledger.failed",
				"identifier", account.Identifier,
				"delta", len(req.Images),
				"error", lerr,
			)
			res.LedgerUpdated = false
			res.Warnings = append(res.Warnings, Warning{Source: "ledger", Reason: lerr.Error()})
		}
	}

	p.logger.Info("pipeline.run.ok",
		"identifier", account.Identifier,
		"tables", len(res.Tables),
		"external_calls", res.ExternalCalls,
		"warnings", len(res.Warnings),
		"ledger_updated", res.LedgerUpdated,
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return res, nil
}

// extractMerged batches all images into one metered call.
func (p *Processor) extractMerged(ctx context.Context, req entity.ExtractionRequest, res *Result) ([]table.Source, error) {
	prompt := llm.BuildExtractionPrompt(req.Note, true)
	raw, err := p.extractor.Extract(ctx, req.Images, prompt)
	res.ExternalCalls++
	if err != nil {
		return nil, err
	}

	rows, columns, err := llm.DecodeRows(raw)
	if err != nil {
		p.logger.Warn("pipeline.parse.skip", "source", table.MergedTableName, "error", err)
		res.Warnings = append(res.Warnings, Warning{Source: table.MergedTableName, Reason: err.Error()})
		return nil, nil
	}
	return []table.Source{{Label: table.MergedTableName, Columns: columns, Rows: rows}}, nil
}

// extractEach issues one call per image through a bounded worker pool,
// collecting results by input index so sheet order is deterministic.
func (p *Processor) extractEach(ctx context.Context, req entity.ExtractionRequest, res *Result) ([]table.Source, error) {
	prompt := llm.BuildExtractionPrompt(req.Note, false)

	type outcome struct {
		raw string
		err error
	}
	outcomes := make([]outcome, len(req.Images))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.concurrency)
	for i, img := range req.Images {
		g.Go(func() error {
			raw, err := p.extractor.Extract(gctx, []entity.ImagePart{img}, prompt)
			outcomes[i] = outcome{raw: raw, err: err}
			// per-image failures are collected, never cancel siblings
			return nil
		})
	}
	_ = g.Wait()
	res.ExternalCalls += len(req.Images)

	var sources []table.Source
	failed := 0
	for i, img := range req.Images {
		if err := outcomes[i].err; err != nil {
			failed++
			p.logger.Warn("pipeline.extract.skip", "source", img.SourceLabel, "error", err)
			res.Warnings = append(res.Warnings, Warning{Source: img.SourceLabel, Reason: err.Error()})
			continue
		}
		rows, columns, err := llm.DecodeRows(outcomes[i].raw)
		if err != nil {
			p.logger.Warn("pipeline.parse.skip", "source", img.SourceLabel, "error", err)
			res.Warnings = append(res.Warnings, Warning{Source: img.SourceLabel, Reason: err.Error()})
			continue
		}
		sources = append(sources, table.Source{Label: img.SourceLabel, Columns: columns, Rows: rows})
	}

	if failed == len(req.Images) {
		return nil, fmt.Errorf("%w: all %d extraction calls failed", common.ErrUpstream, failed)
	}
	return sources, nil
}
