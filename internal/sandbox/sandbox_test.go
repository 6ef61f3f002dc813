package sandbox

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeSession records every call it receives.
type fakeSession struct {
	calls   []string
	failOn  string
	texts   map[string]string
	callErr error
}

func (f *fakeSession) record(call string) error {
	f.calls = append(f.calls, call)
	if f.failOn != "" && call == f.failOn {
		if f.callErr != nil {
			return f.callErr
		}
		return errors.New("element not found")
	}
	return nil
}

func (f *fakeSession) Goto(_ context.Context, url string) error {
	return f.record("goto " + url)
}

func (f *fakeSession) Click(_ context.Context, selector string) error {
	return f.record("click " + selector)
}

func (f *fakeSession) Fill(_ context.Context, selector, text string) error {
	return f.record(fmt.Sprintf("fill %s=%s", selector, text))
}

func (f *fakeSession) Press(_ context.Context, selector, key string) error {
	return f.record(fmt.Sprintf("press %s:%s", selector, key))
}

func (f *fakeSession) WaitFor(_ context.Context, selector string) error {
	return f.record("wait " + selector)
}

func (f *fakeSession) InnerText(_ context.Context, selector string) (string, error) {
	if err := f.record("text " + selector); err != nil {
		return "", err
	}
	return f.texts[selector], nil
}

func (f *fakeSession) GoBack(context.Context) error {
	return f.record("back")
}

func (f *fakeSession) Scroll(_ context.Context, direction string) error {
	return f.record("scroll " + direction)
}

func TestExecute_AppliesCommandsInOrder(t *testing.T) {
	sb := New(nil)
	session := &fakeSession{texts: map[string]string{"h1": "Welcome"}}

	code := `
page.fill("#email", "a@b.c");
page.type("#password", "secret");
page.press("#password", "Enter");
page.waitForSelector(".dashboard");
const title = page.innerText("h1");
page.scroll();
page.goBack();
page.goto("https://example.com/next");
`
	report, err := sb.Execute(context.Background(), session, code)
	require.NoError(t, err)

	assert.Equal(t, []string{
		"fill #email=a@b.c",
		"fill #password=secret",
		"press #password:Enter",
		"wait .dashboard",
		"text h1",
		"scroll down",
		"back",
		"goto https://example.com/next",
	}, session.calls)
	assert.Equal(t, []string{"Welcome"}, report.Extracted)
	assert.Contains(t, report.Log(), "Successful code execution")
	assert.Contains(t, report.Log(), `page.fill("#email", "a@b.c")`)
	assert.Contains(t, report.Log(), "< Welcome")
}

func TestExecute_UndefinedNameFailsBeforeSideEffects(t *testing.T) {
	sb := New(nil)
	session := &fakeSession{}

	_, err := sb.Execute(context.Background(), session, `page.click("#login"); loginButton.click()`)
	require.Error(t, err)

	var execErr *ExecutionError
	require.True(t, errors.As(err, &execErr))
	assert.Contains(t, execErr.Error(), "loginButton")
	assert.Empty(t, session.calls, "nothing may reach the browser when the dry run fails")
}

func TestExecute_SyntaxError(t *testing.T) {
	sb := New(nil)
	session := &fakeSession{}

	_, err := sb.Execute(context.Background(), session, `page.click("#login"`)
	var execErr *ExecutionError
	require.ErrorAs(t, err, &execErr)
	assert.Equal(t, `page.click("#login"`, execErr.Code)
	assert.Empty(t, session.calls)
}

func TestExecute_DisallowedOperation(t *testing.T) {
	sb := New(nil)
	session := &fakeSession{}

	for _, code := range []string{
		`page.evaluate("document.cookie")`,
		`require("fs")`,
		`page.click()`,
		`page.press("F13")`,
		`page.goto("file:///etc/passwd")`,
		`page.scroll("sideways")`,
		`const x = 1 + 1;`,
	} {
		_, err := sb.Execute(context.Background(), session, code)
		require.Error(t, err, code)
	}
	assert.Empty(t, session.calls)
}

func TestExecute_EmptyPlan(t *testing.T) {
	_, err := New(nil).Execute(context.Background(), &fakeSession{}, "// nothing")
	require.ErrorIs(t, err, ErrEmptyPlan)
}

func TestExecute_BrowserFailureStopsPlan(t *testing.T) {
	sb := New(nil)
	session := &fakeSession{failOn: "click #missing"}

	_, err := sb.Execute(context.Background(), session, `page.click("#a"); page.click("#missing"); page.click("#b")`)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "element not found")
	assert.Equal(t, []string{"click #a", "click #missing"}, session.calls)
}

func TestExecute_TooManyCommands(t *testing.T) {
	sb := New(nil, WithMaxCommands(3))
	_, err := sb.Execute(context.Background(), &fakeSession{}, `for (let i = 0; i < 10; i++) { page.scroll("down") }`)
	require.Error(t, err)
	assert.Contains(t, err.Error(), ErrTooManyCommands.Error())
}

func TestCompile_InfiniteLoopTimesOut(t *testing.T) {
	sb := New(nil, WithDryRunTimeout(50*time.Millisecond))
	_, err := sb.Compile(`while (true) {}`)
	require.ErrorIs(t, err, errDryRunTimeout)
}

func TestExecute_Wait(t *testing.T) {
	sb := New(nil, WithMaxWait(time.Second))

	_, err := sb.Execute(context.Background(), &fakeSession{}, `page.waitForTimeout(5)`)
	require.NoError(t, err)

	_, err = sb.Execute(context.Background(), &fakeSession{}, `page.wait(5000)`)
	require.Error(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = sb.Execute(ctx, &fakeSession{}, `page.wait(500)`)
	require.ErrorIs(t, err, context.Canceled)
}

func TestExecute_HugeWaitIsRejected(t *testing.T) {
	sb := New(nil, WithMaxWait(time.Second))

	for _, code := range []string{
		`page.wait(18446744073709552)`,
		`page.wait(-18446744073709552)`,
		`page.wait(Infinity)`,
	} {
		session := &fakeSession{}
		_, err := sb.Execute(context.Background(), session, code)
		require.Error(t, err, code)
		var execErr *ExecutionError
		require.ErrorAs(t, err, &execErr)
		assert.Empty(t, session.calls)
	}
}

func TestCompile_HasNoSideEffects(t *testing.T) {
	plan, err := New(nil).Compile(`page.click("#login")`)
	require.NoError(t, err)
	require.Len(t, plan.Commands, 1)
	assert.Equal(t, Command{Op: OpClick, Selector: "#login"}, plan.Commands[0])
	assert.Equal(t, `page.click("#login")`, plan.Commands[0].String())
}
