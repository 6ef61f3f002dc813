// Package agent runs natural-language instructions against a live browser:
// capture the page, ask the ActionEngine for code, execute it in the sandbox,
// record what worked.
package agent

import (
	"context"
	"errors"
	"fmt"
	"time"

	"browser-pilot/internal/entity"
	"browser-pilot/internal/llm"
	"browser-pilot/internal/sandbox"
)

// Browser is the live session both runners drive.
type Browser interface {
	sandbox.Session
	Content(ctx context.Context) (string, error)
	Screenshot(ctx context.Context, path string) ([]byte, error)
	URL() string
	Close() error
}

// ActionEngine turns instructions plus page markup into code.
type ActionEngine interface {
	GetAction(ctx context.Context, instruction, html string) (entity.ActionResult, error)
	GetQueryEngine(ctx context.Context, html string) (llm.QueryEngine, error)
	Clean(code string) string
	ModelName() string
	MaxCharsPerSource() int
}

// Executor runs cleaned code against the session.
type Executor interface {
	Execute(ctx context.Context, session sandbox.Session, code string) (sandbox.Report, error)
}

// Reporter accepts telemetry without blocking.
type Reporter interface {
	Report(ev entity.TelemetryEvent)
}

type nopReporter struct{}

func (nopReporter) Report(entity.TelemetryEvent) {}

// capturePage snapshots the active page right before an engine call.
func capturePage(ctx context.Context, b Browser) (entity.PageState, error) {
	html, err := b.Content(ctx)
	if err != nil {
		return entity.PageState{}, fmt.Errorf("capture page: %w", err)
	}
	return entity.PageState{URL: b.URL(), HTML: html, CapturedAt: time.Now()}, nil
}

// failureLog renders the debug log for a failed attempt.
func failureLog(err error) string {
	return "Error in code execution: " + failureReason(err)
}

// failureReason drops the generated code carried by *sandbox.ExecutionError.
func failureReason(err error) string {
	var execErr *sandbox.ExecutionError
	if errors.As(err, &execErr) {
		return execErr.Err.Error()
	}
	return err.Error()
}
