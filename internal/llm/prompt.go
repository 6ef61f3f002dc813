package llm

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/openai/openai-go/v3"

	"browser-pilot/internal/entity"
)

const SystemPrompt = `You are a browser automation engine. You turn one natural-language instruction into JavaScript that drives the current page.

### AVAILABLE API (the only global is "page"):
- page.goto(url)                  navigate to an absolute URL
- page.click(selector)            click the first element matching a CSS selector
- page.fill(selector, text)       replace the value of an input or textarea
- page.press([selector,] key)     press Enter, Escape, Tab, Backspace, ArrowDown, ArrowUp or Space
- page.waitForSelector(selector)  wait until an element is visible
- page.innerText(selector)        read the text of an element
- page.scroll("down" | "up")      scroll the viewport
- page.goBack()                   browser back button
- page.wait(ms)                   pause

### RULES:
1. Use only selectors that exist in the HTML context. Prefer ids, then names, then stable attributes.
2. Do one instruction only. Do not invent follow-up steps.
3. Output only code inside a single javascript code block. No explanations.

### EXAMPLE:
HTML CONTEXT:
<form><input id="search" name="q"><button id="go">Search</button></form>
QUERY: Search for "go-rod"
COMPLETION:
` + "```javascript\npage.fill(\"#search\", \"go-rod\");\npage.click(\"#go\");\n```"

// ConstructMessages builds the prompt for one instruction.
// Pure function: evidence in, messages out.
func ConstructMessages(instruction string, evidence []entity.EvidenceNode) []openai.ChatCompletionMessageParamUnion {
	var ctxBuilder strings.Builder
	for _, node := range evidence {
		ctxBuilder.WriteString(node.Content)
		ctxBuilder.WriteString("\n")
	}
	if ctxBuilder.Len() == 0 {
		ctxBuilder.WriteString("(page is empty)\n")
	}

	userContent := fmt.Sprintf(
		"HTML CONTEXT:\n%s"+
			"QUERY: %s\n"+
			"COMPLETION:",
		ctxBuilder.String(),
		instruction,
	)

	return []openai.ChatCompletionMessageParamUnion{
		openai.SystemMessage(SystemPrompt),
		openai.UserMessage(userContent),
	}
}

// FormatSources renders evidence for the debug panel, each node cut to maxChars.
func FormatSources(evidence []entity.EvidenceNode, maxChars int) string {
	parts := make([]string, 0, len(evidence))
	for _, node := range evidence {
		text := node.Content
		if maxChars > 0 && len(text) > maxChars {
			cut := maxChars
			for cut > 0 && !utf8.RuneStart(text[cut]) {
				cut--
			}
			text = text[:cut] + "..."
		}
		parts = append(parts, fmt.Sprintf("> Source (Node id: %s): %s", node.ID, text))
	}
	return strings.Join(parts, "\n\n")
}
