package application

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/fatih/color"
	"go.uber.org/zap"

	"browser-pilot/internal/agent"
	"browser-pilot/internal/sandbox"
)

// RunConsole opens a browser at startURL and runs page.* code typed on stdin.
func (a *App) RunConsole(ctx context.Context, startURL string) error {
	b, err := a.newBrowser(ctx)
	if err != nil {
		return err
	}
	defer func() {
		if err := b.Close(); err != nil {
			a.Logger.Warn("close browser", zap.Error(err))
		}
	}()

	if startURL != "" {
		if err := b.Goto(ctx, startURL); err != nil {
			fmt.Fprintf(a.out, "⚠️ navigation failed: %v\n", err)
		}
	}

	c := &console{
		browser: b,
		sandbox: sandbox.New(a.Logger),
		in:      os.Stdin,
		out:     a.out,
	}
	return c.run(ctx)
}

// console is a manual REPL over the sandbox, for checking selectors and the
// page vocabulary without a model in the loop.
type console struct {
	browser agent.Browser
	sandbox *sandbox.Sandbox
	in      io.Reader
	out     io.Writer
}

func (c *console) run(ctx context.Context) error {
	red := color.New(color.FgRed)
	green := color.New(color.FgGreen)
	scanner := bufio.NewScanner(c.in)

	fmt.Fprintln(c.out, "==================================================")
	fmt.Fprintln(c.out, "🤖 CONSOLE ONLINE. Type page.* code, 'help' or 'exit'.")
	fmt.Fprintln(c.out, "==================================================")

	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		fmt.Fprint(c.out, "\n👉 > ")
		if !scanner.Scan() {
			return scanner.Err()
		}
		line := strings.TrimSpace(scanner.Text())

		switch line {
		case "":
			continue
		case "exit", "quit", "q":
			fmt.Fprintln(c.out, "👋 Bye!")
			return nil
		case "help", "h", "?":
			printHelp(c.out)
			continue
		case "url":
			fmt.Fprintf(c.out, "🌍 %s\n", c.browser.URL())
			continue
		case "html":
			html, err := c.browser.Content(ctx)
			if err != nil {
				red.Fprintf(c.out, "❌ %v\n", err)
				continue
			}
			fmt.Fprintln(c.out, html)
			continue
		}

		start := time.Now()
		report, err := c.sandbox.Execute(ctx, c.browser, line)
		if err != nil {
			red.Fprintf(c.out, "❌ %v\n", err)
			continue
		}
		fmt.Fprintln(c.out, report.Log())
		green.Fprintf(c.out, "✅ done in %v\n", time.Since(start).Round(time.Millisecond))
	}
}

func printHelp(w io.Writer) {
	fmt.Fprintln(w, `
📚 COMMANDS:
---------------------------------------------
 Code (one line, runs in the sandbox):
   page.goto("https://example.com")
   page.click("#login")
   page.fill("#q", "shoes")
   page.press("#q", "Enter")
   page.scroll("down") / page.goBack()
   page.innerText("h1")

 Other:
   url             - current page address
   html            - dump the page markup
   exit            - quit
   help            - this help
---------------------------------------------`)
}
