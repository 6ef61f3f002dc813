// Package sandbox runs generated automation code against a browser session.
//
// Code is plain JavaScript evaluated by goja with a single global, `page`, whose
// methods form an explicit allow-list. Execution happens in two phases: the code
// is first dry-run against a recorder that turns every `page` call into a
// Command, the resulting Plan is validated, and only then are the commands
// applied to the live session in order. Syntax errors, undefined names and
// disallowed calls therefore fail before the browser is touched.
package sandbox

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dop251/goja"
	"go.uber.org/zap"
)

// Binding is the identifier generated code uses for the browser session.
const Binding = "page"

// Session is the part of the browser the generated code may drive.
type Session interface {
	Goto(ctx context.Context, url string) error
	Click(ctx context.Context, selector string) error
	Fill(ctx context.Context, selector, text string) error
	Press(ctx context.Context, selector, key string) error
	WaitFor(ctx context.Context, selector string) error
	InnerText(ctx context.Context, selector string) (string, error)
	GoBack(ctx context.Context) error
	Scroll(ctx context.Context, direction string) error
}

// ExecutionError is returned when generated code cannot be executed.
type ExecutionError struct {
	Code string
	Err  error
}

func (e *ExecutionError) Error() string {
	return "error in code execution: " + e.Err.Error()
}

func (e *ExecutionError) Unwrap() error { return e.Err }

var errDryRunTimeout = errors.New("dry run timed out")

// Report describes a successful execution.
type Report struct {
	Plan      *Plan
	Extracted []string
}

// Log renders the execution log shown to the user.
func (r Report) Log() string {
	var sb strings.Builder
	sb.WriteString("Successful code execution")
	if r.Plan != nil {
		for _, c := range r.Plan.Commands {
			sb.WriteString("\n> ")
			sb.WriteString(c.String())
		}
	}
	for _, text := range r.Extracted {
		sb.WriteString("\n< ")
		sb.WriteString(text)
	}
	return sb.String()
}

type Option func(*Sandbox)

func WithMaxCommands(n int) Option {
	return func(s *Sandbox) { s.maxCommands = n }
}

func WithMaxWait(d time.Duration) Option {
	return func(s *Sandbox) { s.maxWait = d }
}

func WithDryRunTimeout(d time.Duration) Option {
	return func(s *Sandbox) { s.dryRunTimeout = d }
}

type Sandbox struct {
	logger        *zap.Logger
	maxCommands   int
	maxWait       time.Duration
	dryRunTimeout time.Duration
}

func New(logger *zap.Logger, opts ...Option) *Sandbox {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Sandbox{
		logger:        logger,
		maxCommands:   50,
		maxWait:       30 * time.Second,
		dryRunTimeout: 2 * time.Second,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Compile dry-runs code and returns the commands it would perform. It has no side effects.
func (s *Sandbox) Compile(code string) (*Plan, error) {
	prg, err := goja.Compile("generated.js", code, false)
	if err != nil {
		return nil, err
	}

	vm := goja.New()
	rec := &recorder{vm: vm, max: s.maxCommands}
	if err := rec.bind(); err != nil {
		return nil, fmt.Errorf("bind %s: %w", Binding, err)
	}

	timer := time.AfterFunc(s.dryRunTimeout, func() { vm.Interrupt(errDryRunTimeout) })
	defer timer.Stop()

	if _, err := vm.RunProgram(prg); err != nil {
		var interrupted *goja.InterruptedError
		if errors.As(err, &interrupted) {
			return nil, errDryRunTimeout
		}
		return nil, err
	}
	return &Plan{Commands: rec.commands}, nil
}

// Execute compiles, validates and applies code to session.
// Any failure is returned as *ExecutionError.
func (s *Sandbox) Execute(ctx context.Context, session Session, code string) (Report, error) {
	plan, err := s.Compile(code)
	if err != nil {
		return Report{}, &ExecutionError{Code: code, Err: err}
	}
	if err := plan.Validate(s.maxWait); err != nil {
		return Report{}, &ExecutionError{Code: code, Err: err}
	}

	report := Report{Plan: plan}
	for i, cmd := range plan.Commands {
		out, err := s.apply(ctx, session, cmd)
		if err != nil {
			s.logger.Debug("page command failed", zap.Int("step", i+1), zap.Stringer("command", cmd), zap.Error(err))
			return report, &ExecutionError{Code: code, Err: fmt.Errorf("%s: %w", cmd, err)}
		}
		if cmd.Op == OpInnerText {
			report.Extracted = append(report.Extracted, out)
		}
		s.logger.Debug("page command applied", zap.Int("step", i+1), zap.Stringer("command", cmd))
	}
	return report, nil
}

// apply routes a command to the session
func (s *Sandbox) apply(ctx context.Context, session Session, cmd Command) (string, error) {
	switch cmd.Op {
	case OpGoto:
		return "", session.Goto(ctx, cmd.Value)
	case OpClick:
		return "", session.Click(ctx, cmd.Selector)
	case OpFill:
		return "", session.Fill(ctx, cmd.Selector, cmd.Value)
	case OpPress:
		return "", session.Press(ctx, cmd.Selector, cmd.Value)
	case OpWaitFor:
		return "", session.WaitFor(ctx, cmd.Selector)
	case OpInnerText:
		return session.InnerText(ctx, cmd.Selector)
	case OpGoBack:
		return "", session.GoBack(ctx)
	case OpScroll:
		return "", session.Scroll(ctx, cmd.Value)
	case OpWait:
		t := time.NewTimer(cmd.Wait)
		defer t.Stop()
		select {
		case <-t.C:
			return "", nil
		case <-ctx.Done():
			return "", ctx.Err()
		}
	default:
		return "", fmt.Errorf("operation %q is not allowed", cmd.Op)
	}
}
