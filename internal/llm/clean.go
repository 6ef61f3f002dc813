package llm

import (
	"regexp"
	"strings"
)

var fencedBlock = regexp.MustCompile("(?s)```[a-zA-Z0-9_+-]*[ \\t]*\\n?(.*?)```")

// Clean strips markdown fences and surrounding prose from generated code.
// Clean(Clean(x)) == Clean(x).
func Clean(code string) string {
	for {
		next := cleanOnce(code)
		if next == code {
			return next
		}
		code = next
	}
}

func cleanOnce(code string) string {
	code = strings.TrimSpace(code)
	if m := fencedBlock.FindStringSubmatch(code); m != nil {
		return strings.TrimSpace(m[1])
	}

	// streamed output can stop before the closing fence
	if strings.HasPrefix(code, "```") {
		if i := strings.IndexByte(code, '\n'); i >= 0 {
			code = code[i+1:]
		} else {
			code = ""
		}
	}
	code = strings.TrimSuffix(code, "```")
	return strings.TrimSpace(code)
}
