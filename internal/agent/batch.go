package agent

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/fatih/color"
	"go.uber.org/zap"

	"browser-pilot/internal/entity"
	"browser-pilot/internal/metrics"
	"browser-pilot/internal/telemetry"
	"browser-pilot/internal/transcript"
)

// FailedInstruction is the instruction that stopped a batch.
type FailedInstruction struct {
	Index       int
	Instruction string
	Code        string
	Err         error
}

// Result summarises a batch run.
type Result struct {
	OutputPath string
	Executed   int
	Failed     *FailedInstruction
}

// BatchOptions configure a BatchRunner.
type BatchOptions struct {
	// OutputName is the transcript file name inside the writer's directory.
	OutputName string
	// OwnsSession closes the browser when Run returns.
	OwnsSession bool
	Out         io.Writer
}

// BatchRunner executes an instruction list top to bottom and writes the transcript.
type BatchRunner struct {
	browser  Browser
	engine   ActionEngine
	sandbox  Executor
	reporter Reporter
	writer   *transcript.Writer
	metrics  *metrics.Collector
	logger   *zap.Logger
	opts     BatchOptions
}

func NewBatchRunner(
	b Browser,
	engine ActionEngine,
	exec Executor,
	reporter Reporter,
	writer *transcript.Writer,
	m *metrics.Collector,
	logger *zap.Logger,
	opts BatchOptions,
) *BatchRunner {
	if logger == nil {
		logger = zap.NewNop()
	}
	if reporter == nil {
		reporter = nopReporter{}
	}
	if opts.Out == nil {
		opts.Out = os.Stdout
	}
	return &BatchRunner{
		browser:  b,
		engine:   engine,
		sandbox:  exec,
		reporter: reporter,
		writer:   writer,
		metrics:  m,
		logger:   logger,
		opts:     opts,
	}
}

// Run navigates to baseURL and executes instructions in order. The first
// execution failure stops the batch; it is reported in Result.Failed and the
// transcript so far is still written. Other errors are returned.
func (r *BatchRunner) Run(ctx context.Context, baseURL string, instructions []string) (Result, error) {
	if r.opts.OwnsSession {
		defer func() {
			if cerr := r.browser.Close(); cerr != nil {
				r.logger.Warn("close browser", zap.Error(cerr))
			}
		}()
	}

	if err := r.browser.Goto(ctx, baseURL); err != nil {
		return Result{}, fmt.Errorf("navigate to %s: %w", baseURL, err)
	}
	fmt.Fprintf(r.opts.Out, "🌍 %s\n", baseURL)

	t := transcript.New(baseURL)

	for i, instruction := range instructions {
		fmt.Fprintf(r.opts.Out, "\n▶ [%d/%d] %s\n", i+1, len(instructions), instruction)

		page, err := capturePage(ctx, r.browser)
		if err != nil {
			return r.abort(t, i, err)
		}

		genStart := time.Now()
		action, err := r.engine.GetAction(ctx, instruction, page.HTML)
		r.metrics.ObserveGeneration(metrics.ModeBuild, time.Since(genStart))
		if err != nil {
			r.metrics.RecordAttempt(metrics.ModeBuild, metrics.OutcomeError)
			return r.abort(t, i, fmt.Errorf("generate code for %q: %w", instruction, err))
		}
		code := r.engine.Clean(action.Code)

		execStart := time.Now()
		_, execErr := r.sandbox.Execute(ctx, r.browser, code)
		r.metrics.ObserveExecution(metrics.ModeBuild, time.Since(execStart))
		if execErr != nil {
			r.metrics.RecordAttempt(metrics.ModeBuild, metrics.OutcomeFailure)
			r.printFailure(code, execErr)

			path, saveErr := r.writer.Save(r.opts.OutputName, t)
			res := Result{
				OutputPath: path,
				Executed:   t.Len(),
				Failed: &FailedInstruction{
					Index:       i,
					Instruction: instruction,
					Code:        code,
					Err:         execErr,
				},
			}
			if saveErr != nil {
				return res, saveErr
			}
			return res, nil
		}

		r.metrics.RecordAttempt(metrics.ModeBuild, metrics.OutcomeSuccess)
		t.Append(instruction, code)
		fmt.Fprintf(r.opts.Out, "%s\n", code)

		r.reporter.Report(entity.TelemetryEvent{
			ModelName:    r.engine.ModelName(),
			Code:         code,
			HTML:         page.HTML,
			Evidence:     action.Evidence,
			Instruction:  instruction,
			BaseURL:      baseURL,
			SessionLabel: telemetry.BuildLabel,
		})
	}

	path, err := r.writer.Save(r.opts.OutputName, t)
	if err != nil {
		return Result{Executed: t.Len()}, err
	}
	color.New(color.FgGreen).Fprintf(r.opts.Out, "\n✅ %d instruction(s) written to %s\n", t.Len(), path)
	return Result{OutputPath: path, Executed: t.Len()}, nil
}

// abort persists what already succeeded before propagating err.
func (r *BatchRunner) abort(t *transcript.Transcript, idx int, err error) (Result, error) {
	path, saveErr := r.writer.Save(r.opts.OutputName, t)
	if saveErr != nil {
		r.logger.Warn("save partial transcript", zap.Error(saveErr))
	}
	r.logger.Error("batch stopped", zap.Int("instruction", idx+1), zap.Error(err))
	return Result{OutputPath: path, Executed: t.Len()}, err
}

func (r *BatchRunner) printFailure(code string, err error) {
	red := color.New(color.FgRed, color.Bold)
	red.Fprintln(r.opts.Out, "❌ Error in code execution:")
	fmt.Fprintln(r.opts.Out, code)
	red.Fprintf(r.opts.Out, "%v\n", err)
}
