package agent

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"browser-pilot/internal/sandbox"
	"browser-pilot/internal/telemetry"
	"browser-pilot/internal/transcript"
)

type batchFixture struct {
	log      *eventLog
	browser  *fakeBrowser
	engine   *fakeEngine
	reporter *recordingReporter
	fs       afero.Fs
	out      *bytes.Buffer
	runner   *BatchRunner
}

func newBatchFixture(codes map[string]string) *batchFixture {
	log := &eventLog{}
	f := &batchFixture{
		log:      log,
		browser:  newFakeBrowser(log),
		engine:   &fakeEngine{log: log, codes: codes},
		reporter: &recordingReporter{},
		fs:       afero.NewMemMapFs(),
		out:      &bytes.Buffer{},
	}
	f.runner = NewBatchRunner(
		f.browser,
		f.engine,
		sandbox.New(nil),
		f.reporter,
		transcript.NewWriter(f.fs, "out"),
		nil,
		nil,
		BatchOptions{OutputName: "todo_openai.js", OwnsSession: true, Out: f.out},
	)
	return f
}

func (f *batchFixture) written(t *testing.T) string {
	t.Helper()
	data, err := afero.ReadFile(f.fs, "out/todo_openai.js")
	require.NoError(t, err)
	return string(data)
}

func TestBatchRunner_SingleSuccess(t *testing.T) {
	f := newBatchFixture(map[string]string{
		"Click the login button": "```javascript\npage.click(\"#login\")\n```",
	})

	res, err := f.runner.Run(context.Background(), "https://example.com", []string{"Click the login button"})
	require.NoError(t, err)
	assert.Nil(t, res.Failed)
	assert.Equal(t, 1, res.Executed)
	assert.Equal(t, "out/todo_openai.js", res.OutputPath)

	want := "page.goto(\"https://example.com\")\n" +
		"\n" +
		transcript.Separator + "\n" +
		"// Query: Click the login button\n" +
		"// Code:\n" +
		"page.click(\"#login\")"
	assert.Equal(t, want, f.written(t))

	events := f.reporter.all()
	require.Len(t, events, 1)
	assert.Equal(t, telemetry.BuildLabel, events[0].SessionLabel)
	assert.Empty(t, events[0].Screenshot)
	assert.Equal(t, `page.click("#login")`, events[0].Code)
	assert.Equal(t, "fake-model", events[0].ModelName)
	assert.Equal(t, "https://example.com", events[0].BaseURL)
	assert.Equal(t, testEvidence, events[0].Evidence)

	// navigation first, page captured right before generation, browser closed last
	assert.Equal(t, []string{
		"goto https://example.com",
		"content",
		"generate Click the login button",
		"click #login",
		"close",
	}, f.log.all())
}

func TestBatchRunner_UndefinedNameHalts(t *testing.T) {
	f := newBatchFixture(map[string]string{
		"Click the login button": "loginButton.click()",
		"Fill the form":          `page.fill("#user", "bob")`,
	})

	res, err := f.runner.Run(context.Background(), "https://example.com",
		[]string{"Click the login button", "Fill the form"})
	require.NoError(t, err)
	require.NotNil(t, res.Failed)
	assert.Equal(t, 0, res.Failed.Index)
	assert.Equal(t, "loginButton.click()", res.Failed.Code)

	var execErr *sandbox.ExecutionError
	assert.ErrorAs(t, res.Failed.Err, &execErr)
	assert.Zero(t, res.Executed)

	assert.Equal(t, "page.goto(\"https://example.com\")\n", f.written(t))
	assert.Empty(t, f.reporter.all())
	assert.NotContains(t, f.log.all(), "generate Fill the form")
	assert.Contains(t, f.out.String(), "loginButton.click()")
	assert.Equal(t, "close", f.log.all()[len(f.log.all())-1])
}

func TestBatchRunner_FailureKeepsEarlierInstructions(t *testing.T) {
	f := newBatchFixture(map[string]string{
		"one":   `page.click("#a")`,
		"two":   `page.click("#b")`,
		"three": `page.click("#missing")`,
		"four":  `page.click("#d")`,
	})
	f.browser.failSelector = "#missing"

	res, err := f.runner.Run(context.Background(), "https://example.com",
		[]string{"one", "two", "three", "four"})
	require.NoError(t, err)
	require.NotNil(t, res.Failed)
	assert.Equal(t, 2, res.Failed.Index)
	assert.Equal(t, 2, res.Executed)

	got := f.written(t)
	assert.Contains(t, got, "// Query: one\n")
	assert.Contains(t, got, "// Query: two\n")
	assert.NotContains(t, got, "three")
	assert.NotContains(t, got, "four")
	assert.Len(t, f.reporter.all(), 2)
}

func TestBatchRunner_EmptyInstructionList(t *testing.T) {
	f := newBatchFixture(nil)

	res, err := f.runner.Run(context.Background(), "https://example.com", nil)
	require.NoError(t, err)
	assert.Zero(t, res.Executed)
	assert.Equal(t, "page.goto(\"https://example.com\")\n", f.written(t))
}

func TestBatchRunner_GenerationErrorPropagates(t *testing.T) {
	f := newBatchFixture(map[string]string{"one": `page.click("#a")`})
	boom := errors.New("rate limited")
	f.engine.genErr = boom

	_, err := f.runner.Run(context.Background(), "https://example.com", []string{"one"})
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, "page.goto(\"https://example.com\")\n", f.written(t))
	assert.Contains(t, f.log.all(), "close")
}

func TestBatchRunner_NavigationErrorPropagates(t *testing.T) {
	f := newBatchFixture(nil)
	f.browser.gotoErr = errors.New("dns failure")

	_, err := f.runner.Run(context.Background(), "https://example.com", []string{"one"})
	assert.ErrorContains(t, err, "dns failure")
	assert.Contains(t, f.log.all(), "close")
}
