package llm

import (
	"context"
	"fmt"

	chromem "github.com/philippgille/chromem-go"
	"go.uber.org/zap"

	"browser-pilot/internal/entity"
	"browser-pilot/internal/retrieval"
)

// Options tune retrieval for the engine.
type Options struct {
	ChunkSize         int
	TopK              int
	MaxCharsPerSource int
}

// Engine turns an instruction plus page markup into code: chunk, index, retrieve, prompt, generate.
type Engine struct {
	gen    Generator
	embed  chromem.EmbeddingFunc
	opts   Options
	logger *zap.Logger
}

func NewEngine(gen Generator, embed chromem.EmbeddingFunc, opts Options, logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.ChunkSize <= 0 {
		opts.ChunkSize = 1000
	}
	if opts.TopK <= 0 {
		opts.TopK = 3
	}
	if opts.MaxCharsPerSource <= 0 {
		opts.MaxCharsPerSource = 1500
	}
	return &Engine{gen: gen, embed: embed, opts: opts, logger: logger}
}

func (e *Engine) ModelName() string { return e.gen.ModelName() }

func (e *Engine) MaxCharsPerSource() int { return e.opts.MaxCharsPerSource }

func (e *Engine) Clean(code string) string { return Clean(code) }

// GetAction generates cleaned code for one instruction in a single round trip.
func (e *Engine) GetAction(ctx context.Context, instruction, html string) (entity.ActionResult, error) {
	idx, err := e.index(ctx, html)
	if err != nil {
		return entity.ActionResult{}, err
	}
	evidence, err := idx.Query(ctx, instruction, e.opts.TopK)
	if err != nil {
		return entity.ActionResult{}, fmt.Errorf("retrieve evidence: %w", err)
	}

	e.logger.Debug("generating action",
		zap.String("instruction", instruction),
		zap.Int("evidence", len(evidence)),
	)
	raw, err := e.gen.Complete(ctx, ConstructMessages(instruction, evidence))
	if err != nil {
		return entity.ActionResult{}, err
	}
	return entity.NewActionResult(Clean(raw), evidence), nil
}

// GetQueryEngine indexes the page once; the returned engine streams answers.
func (e *Engine) GetQueryEngine(ctx context.Context, html string) (QueryEngine, error) {
	idx, err := e.index(ctx, html)
	if err != nil {
		return nil, err
	}
	return &queryEngine{engine: e, index: idx}, nil
}

func (e *Engine) index(ctx context.Context, html string) (*retrieval.Index, error) {
	chunks, err := retrieval.ChunkHTML(html, e.opts.ChunkSize)
	if err != nil {
		return nil, fmt.Errorf("chunk page: %w", err)
	}
	idx, err := retrieval.BuildIndex(ctx, chunks, e.embed)
	if err != nil {
		return nil, fmt.Errorf("index page: %w", err)
	}
	e.logger.Debug("page indexed", zap.Int("chunks", idx.Len()))
	return idx, nil
}

type queryEngine struct {
	engine *Engine
	index  *retrieval.Index
}

func (q *queryEngine) Query(ctx context.Context, instruction string) (StreamingResponse, error) {
	evidence, err := q.index.Query(ctx, instruction, q.engine.opts.TopK)
	if err != nil {
		return nil, fmt.Errorf("retrieve evidence: %w", err)
	}
	stream := q.engine.gen.Stream(ctx, ConstructMessages(instruction, evidence))
	return newStreamingResponse(stream, evidence), nil
}
