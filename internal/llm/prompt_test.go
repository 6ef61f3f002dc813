package llm

import (
	"encoding/json"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/openai/openai-go/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"browser-pilot/internal/entity"
)

// extractContent marshals an SDK message to JSON and pulls out its text.
func extractContent(t *testing.T, msg openai.ChatCompletionMessageParamUnion) string {
	t.Helper()
	bytes, err := json.Marshal(msg)
	require.NoError(t, err)

	var temp struct {
		Role    string `json:"role"`
		Content string `json:"content"`
	}
	require.NoError(t, json.Unmarshal(bytes, &temp))
	return temp.Content
}

func TestConstructMessages_IncludesEvidenceAndQuery(t *testing.T) {
	evidence := []entity.EvidenceNode{
		{ID: "node-0", Content: `<input id="q" name="q">`},
		{ID: "node-1", Content: `<button id="search">Search</button>`},
	}

	msgs := ConstructMessages("Search for shoes", evidence)
	require.Len(t, msgs, 2)

	sys := extractContent(t, msgs[0])
	assert.Contains(t, sys, `the only global is "page"`)

	user := extractContent(t, msgs[1])
	t.Logf("\n--- user message ---\n%s\n--------------------", user)
	assert.True(t, strings.HasPrefix(user, "HTML CONTEXT:\n"))
	assert.Contains(t, user, `<input id="q" name="q">`)
	assert.Contains(t, user, `<button id="search">Search</button>`)
	assert.True(t, strings.HasSuffix(user, "QUERY: Search for shoes\nCOMPLETION:"))
}

func TestConstructMessages_EmptyPage(t *testing.T) {
	msgs := ConstructMessages("Click login", nil)
	require.Len(t, msgs, 2)
	assert.Contains(t, extractContent(t, msgs[1]), "(page is empty)")
}

func TestFormatSources_TruncatesEachNode(t *testing.T) {
	evidence := []entity.EvidenceNode{
		{ID: "node-0", Content: "abcdefghij"},
		{ID: "node-1", Content: "short"},
	}

	got := FormatSources(evidence, 5)
	assert.Equal(t,
		"> Source (Node id: node-0): abcde...\n\n> Source (Node id: node-1): short",
		got,
	)
	assert.Empty(t, FormatSources(nil, 5))
}

func TestFormatSources_KeepsRunesWhole(t *testing.T) {
	evidence := []entity.EvidenceNode{{ID: "node-1", Content: "<p>Привет, мир</p>"}}

	got := FormatSources(evidence, 6)
	assert.True(t, utf8.ValidString(got))
	assert.Equal(t, "> Source (Node id: node-1): <p>П...", got)
}
