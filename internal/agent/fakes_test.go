package agent

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"browser-pilot/internal/entity"
	"browser-pilot/internal/llm"
)

// eventLog is shared by fakes so tests can assert the order of side effects.
type eventLog struct {
	mu     sync.Mutex
	events []string
}

func (l *eventLog) add(format string, args ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = append(l.events, fmt.Sprintf(format, args...))
}

func (l *eventLog) all() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.events...)
}

type fakeBrowser struct {
	log           *eventLog
	url           string
	html          string
	screenshot    []byte
	screenshotErr error
	gotoErr       error
	failSelector  string
	// block, when set, stalls Content until released
	block chan struct{}
}

func newFakeBrowser(log *eventLog) *fakeBrowser {
	return &fakeBrowser{
		log:        log,
		html:       `<html><body><button id="login">Log in</button></body></html>`,
		screenshot: []byte("png"),
	}
}

func (b *fakeBrowser) Goto(_ context.Context, url string) error {
	b.log.add("goto %s", url)
	if b.gotoErr != nil {
		return b.gotoErr
	}
	b.url = url
	return nil
}

func (b *fakeBrowser) Click(_ context.Context, selector string) error {
	b.log.add("click %s", selector)
	if selector == b.failSelector {
		return errors.New("element not found")
	}
	return nil
}

func (b *fakeBrowser) Fill(_ context.Context, selector, text string) error {
	b.log.add("fill %s %s", selector, text)
	return nil
}

func (b *fakeBrowser) Press(_ context.Context, selector, key string) error {
	b.log.add("press %s %s", selector, key)
	return nil
}

func (b *fakeBrowser) WaitFor(_ context.Context, selector string) error {
	b.log.add("wait %s", selector)
	return nil
}

func (b *fakeBrowser) InnerText(_ context.Context, selector string) (string, error) {
	b.log.add("text %s", selector)
	return "text of " + selector, nil
}

func (b *fakeBrowser) GoBack(context.Context) error {
	b.log.add("back")
	return nil
}

func (b *fakeBrowser) Scroll(_ context.Context, direction string) error {
	b.log.add("scroll %s", direction)
	return nil
}

func (b *fakeBrowser) Content(context.Context) (string, error) {
	if b.block != nil {
		<-b.block
	}
	b.log.add("content")
	return b.html, nil
}

func (b *fakeBrowser) Screenshot(context.Context, string) ([]byte, error) {
	b.log.add("screenshot")
	if b.screenshotErr != nil {
		return nil, b.screenshotErr
	}
	return b.screenshot, nil
}

func (b *fakeBrowser) URL() string { return b.url }

func (b *fakeBrowser) Close() error {
	b.log.add("close")
	return nil
}

var testEvidence = []entity.EvidenceNode{{ID: "node-0", Content: `<button id="login">Log in</button>`, Score: 0.9}}

// fakeEngine answers from fixed tables keyed by instruction.
type fakeEngine struct {
	log    *eventLog
	codes  map[string]string
	chunks map[string][]string
	genErr error
}

func (e *fakeEngine) GetAction(_ context.Context, instruction, html string) (entity.ActionResult, error) {
	e.log.add("generate %s", instruction)
	if e.genErr != nil {
		return entity.ActionResult{}, e.genErr
	}
	return entity.NewActionResult(e.codes[instruction], testEvidence), nil
}

func (e *fakeEngine) GetQueryEngine(_ context.Context, html string) (llm.QueryEngine, error) {
	e.log.add("index")
	return &fakeQueryEngine{engine: e}, nil
}

func (e *fakeEngine) Clean(code string) string { return llm.Clean(code) }
func (e *fakeEngine) ModelName() string        { return "fake-model" }
func (e *fakeEngine) MaxCharsPerSource() int   { return 100 }

type fakeQueryEngine struct {
	engine *fakeEngine
}

func (q *fakeQueryEngine) Query(_ context.Context, instruction string) (llm.StreamingResponse, error) {
	if q.engine.genErr != nil {
		return nil, q.engine.genErr
	}
	return &fakeResponse{log: q.engine.log, chunks: q.engine.chunks[instruction], pos: -1}, nil
}

type fakeResponse struct {
	log    *eventLog
	chunks []string
	pos    int
}

func (r *fakeResponse) Next() bool {
	if r.pos+1 >= len(r.chunks) {
		if r.pos < len(r.chunks) {
			r.log.add("drained")
			r.pos = len(r.chunks)
		}
		return false
	}
	r.pos++
	r.log.add("chunk %s", r.chunks[r.pos])
	return true
}

func (r *fakeResponse) Chunk() string {
	if r.pos < 0 || r.pos >= len(r.chunks) {
		return ""
	}
	return r.chunks[r.pos]
}

func (r *fakeResponse) Err() error { return nil }

func (r *fakeResponse) FormatSources(maxChars int) string {
	return llm.FormatSources(testEvidence, maxChars)
}

func (r *fakeResponse) Evidence() []entity.EvidenceNode { return testEvidence }

type recordingReporter struct {
	mu     sync.Mutex
	events []entity.TelemetryEvent
}

func (r *recordingReporter) Report(ev entity.TelemetryEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
}

func (r *recordingReporter) all() []entity.TelemetryEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]entity.TelemetryEvent(nil), r.events...)
}

type recordingDisplay struct {
	statuses   []string
	partials   []string
	sources    []string
	executions []Execution
	snapshots  []Snapshot
}

func (d *recordingDisplay) Status(m string)       { d.statuses = append(d.statuses, m) }
func (d *recordingDisplay) PartialCode(c string)  { d.partials = append(d.partials, c) }
func (d *recordingDisplay) Sources(s string)      { d.sources = append(d.sources, s) }
func (d *recordingDisplay) Execution(e Execution) { d.executions = append(d.executions, e) }
func (d *recordingDisplay) Browser(s Snapshot)    { d.snapshots = append(d.snapshots, s) }
