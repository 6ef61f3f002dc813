package agent

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"

	"browser-pilot/internal/entity"
	"browser-pilot/internal/llm"
	"browser-pilot/internal/metrics"
	"browser-pilot/internal/telemetry"
)

// ErrBusy is returned when an instruction is submitted while another one is running.
var ErrBusy = errors.New("another instruction is in progress")

// State of the interactive pipeline.
type State string

const (
	StateIdle                 State = "idle"
	StateURLSubmitted         State = "url_submitted"
	StateInstructionSubmitted State = "instruction_submitted"
	StateGenerating           State = "generating"
	StateExecuting            State = "executing"
	StateDisplayRefreshed     State = "display_refreshed"
	StateTelemetrySent        State = "telemetry_sent"
)

// InteractiveOptions configure an InteractiveRunner.
type InteractiveOptions struct {
	// ScreenshotPath, when set, also receives every screenshot on disk.
	ScreenshotPath string
}

// InteractiveRunner serves one user session: instructions arrive one at a
// time, each runs through generate, execute, refresh, report.
type InteractiveRunner struct {
	browser  Browser
	engine   ActionEngine
	sandbox  Executor
	reporter Reporter
	metrics  *metrics.Collector
	logger   *zap.Logger
	opts     InteractiveOptions

	sem *semaphore.Weighted

	mu           sync.Mutex
	state        State
	session      entity.SessionState
	lastEvidence []entity.EvidenceNode
	lastHTML     string

	closeOnce sync.Once
	closeErr  error
}

func NewInteractiveRunner(
	b Browser,
	engine ActionEngine,
	exec Executor,
	reporter Reporter,
	m *metrics.Collector,
	logger *zap.Logger,
	opts InteractiveOptions,
) *InteractiveRunner {
	if logger == nil {
		logger = zap.NewNop()
	}
	if reporter == nil {
		reporter = nopReporter{}
	}
	return &InteractiveRunner{
		browser:  b,
		engine:   engine,
		sandbox:  exec,
		reporter: reporter,
		metrics:  m,
		logger:   logger,
		opts:     opts,
		sem:      semaphore.NewWeighted(1),
		state:    StateIdle,
	}
}

func (r *InteractiveRunner) State() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

// Session returns a copy of the session state.
func (r *InteractiveRunner) Session() entity.SessionState {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.session
}

func (r *InteractiveRunner) transition(to State) {
	r.mu.Lock()
	from := r.state
	r.state = to
	r.mu.Unlock()

	r.metrics.RecordStateTransition(string(from), string(to))
	r.logger.Debug("state transition", zap.String("from", string(from)), zap.String("to", string(to)))
}

// SubmitURL loads url and returns a fresh snapshot.
func (r *InteractiveRunner) SubmitURL(ctx context.Context, url string) (Snapshot, error) {
	if !r.sem.TryAcquire(1) {
		return Snapshot{}, ErrBusy
	}
	defer r.sem.Release(1)
	defer r.transition(StateIdle)

	r.transition(StateURLSubmitted)
	if err := r.browser.Goto(ctx, url); err != nil {
		return Snapshot{}, fmt.Errorf("navigate to %s: %w", url, err)
	}
	return r.snapshot(ctx)
}

// SubmitInstruction runs the whole pipeline for one instruction. Execution
// failures are part of the Outcome; only generation and navigation errors are
// returned.
func (r *InteractiveRunner) SubmitInstruction(ctx context.Context, instruction, url string, display Display) (Outcome, error) {
	if display == nil {
		display = nopDisplay{}
	}
	if !r.sem.TryAcquire(1) {
		return Outcome{}, ErrBusy
	}
	defer r.sem.Release(1)
	defer r.transition(StateIdle)

	r.transition(StateInstructionSubmitted)
	display.Status(ProcessingMessage)

	r.transition(StateGenerating)
	genStart := time.Now()
	code, sources, evidence, err := r.generate(ctx, instruction, url, display)
	r.metrics.ObserveGeneration(metrics.ModeLaunch, time.Since(genStart))
	if err != nil {
		r.metrics.RecordAttempt(metrics.ModeLaunch, metrics.OutcomeError)
		return Outcome{}, err
	}

	out, err := r.run(ctx, instruction, code, evidence, display)
	out.Sources = sources
	return out, err
}

// ExecuteCode runs code the user edited by hand, reusing the evidence of the
// last generated instruction.
func (r *InteractiveRunner) ExecuteCode(ctx context.Context, instruction, code string, display Display) (Outcome, error) {
	if display == nil {
		display = nopDisplay{}
	}
	if !r.sem.TryAcquire(1) {
		return Outcome{}, ErrBusy
	}
	defer r.sem.Release(1)
	defer r.transition(StateIdle)

	r.transition(StateInstructionSubmitted)
	display.Status(ProcessingMessage)

	r.mu.Lock()
	evidence := r.lastEvidence
	r.mu.Unlock()

	out, err := r.run(ctx, instruction, code, evidence, display)
	out.Sources = llm.FormatSources(evidence, r.engine.MaxCharsPerSource())
	return out, err
}

func (r *InteractiveRunner) generate(ctx context.Context, instruction, url string, display Display) (string, string, []entity.EvidenceNode, error) {
	if url != "" && url != r.browser.URL() {
		if err := r.browser.Goto(ctx, url); err != nil {
			return "", "", nil, fmt.Errorf("navigate to %s: %w", url, err)
		}
	}
	r.mu.Lock()
	r.session.BaseURL = url
	r.mu.Unlock()

	page, err := capturePage(ctx, r.browser)
	if err != nil {
		return "", "", nil, err
	}
	qe, err := r.engine.GetQueryEngine(ctx, page.HTML)
	if err != nil {
		return "", "", nil, fmt.Errorf("build query engine: %w", err)
	}
	resp, err := qe.Query(ctx, instruction)
	if err != nil {
		return "", "", nil, fmt.Errorf("query %q: %w", instruction, err)
	}

	code, err := llm.Drain(resp, display.PartialCode)
	if err != nil {
		return "", "", nil, fmt.Errorf("generate code for %q: %w", instruction, err)
	}

	sources := resp.FormatSources(r.engine.MaxCharsPerSource())
	evidence := resp.Evidence()
	display.Sources(sources)

	r.mu.Lock()
	r.lastEvidence = evidence
	r.mu.Unlock()

	return code, sources, evidence, nil
}

// run executes code, refreshes the display and emits telemetry.
func (r *InteractiveRunner) run(ctx context.Context, instruction, code string, evidence []entity.EvidenceNode, display Display) (Outcome, error) {
	r.transition(StateExecuting)
	exec, err := r.execute(ctx, code)
	if err != nil {
		return Outcome{}, err
	}
	display.Execution(exec)

	r.transition(StateDisplayRefreshed)
	snap, err := r.snapshot(ctx)
	if err != nil {
		r.logger.Warn("refresh display", zap.Error(err))
	}
	display.Browser(snap)

	r.transition(StateTelemetrySent)
	r.sendTelemetry(ctx, instruction, exec, evidence)

	return Outcome{Instruction: instruction, Execution: exec, Snapshot: snap}, nil
}

func (r *InteractiveRunner) execute(ctx context.Context, code string) (Execution, error) {
	code = r.engine.Clean(code)

	html, err := r.browser.Content(ctx)
	if err != nil {
		return Execution{}, fmt.Errorf("capture page: %w", err)
	}

	start := time.Now()
	report, execErr := r.sandbox.Execute(ctx, r.browser, code)
	r.metrics.ObserveExecution(metrics.ModeLaunch, time.Since(start))

	r.mu.Lock()
	defer r.mu.Unlock()
	r.lastHTML = html

	exec := Execution{Code: code, HTML: html}
	if execErr != nil {
		r.metrics.RecordAttempt(metrics.ModeLaunch, metrics.OutcomeFailure)
		r.logger.Info("execution failed", zap.String("code", code), zap.Error(execErr))
		exec.Log = failureLog(execErr)
		exec.Status = entity.StatusFailure(failureReason(execErr))
		exec.FullCode = r.session.FullCode
		return exec, nil
	}

	r.metrics.RecordAttempt(metrics.ModeLaunch, metrics.OutcomeSuccess)
	r.session.FullCode = appendCode(r.session.FullCode, code)
	exec.Log = report.Log()
	exec.Status = entity.StatusSuccess()
	exec.FullCode = r.session.FullCode
	return exec, nil
}

// appendCode keeps successive blocks on separate lines.
func appendCode(full, code string) string {
	if full == "" || strings.HasSuffix(full, "\n") {
		return full + code
	}
	return full + "\n" + code
}

func (r *InteractiveRunner) snapshot(ctx context.Context) (Snapshot, error) {
	img, err := r.browser.Screenshot(ctx, r.opts.ScreenshotPath)
	snap := Snapshot{URL: r.browser.URL(), Screenshot: img}
	if err != nil {
		return snap, fmt.Errorf("screenshot: %w", err)
	}
	return snap, nil
}

func (r *InteractiveRunner) sendTelemetry(ctx context.Context, instruction string, exec Execution, evidence []entity.EvidenceNode) {
	img, err := r.browser.Screenshot(ctx, "")
	if err != nil {
		r.logger.Debug("telemetry screenshot failed", zap.Error(err))
		img = nil
	}

	r.mu.Lock()
	baseURL := r.session.BaseURL
	r.mu.Unlock()

	r.reporter.Report(entity.TelemetryEvent{
		ModelName:    r.engine.ModelName(),
		Code:         exec.Code,
		Screenshot:   img,
		HTML:         exec.HTML,
		Evidence:     evidence,
		Instruction:  instruction,
		BaseURL:      baseURL,
		SessionLabel: telemetry.LaunchLabel,
	})
}

// LastHTML is the page markup captured before the most recent execution.
func (r *InteractiveRunner) LastHTML() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.lastHTML
}

// Close closes the page, then the browser. Safe to call more than once.
func (r *InteractiveRunner) Close() error {
	r.closeOnce.Do(func() {
		r.closeErr = r.browser.Close()
	})
	return r.closeErr
}
