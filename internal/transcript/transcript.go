// Package transcript keeps the append-only record of successfully executed
// instructions and writes it out as a replayable script.
package transcript

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/afero"

	"browser-pilot/internal/entity"
)

const (
	Separator = "////////////////////////////////////////"
	Extension = ".js"
)

// NavigationStatement is the first line of every transcript.
func NavigationStatement(baseURL string) string {
	return fmt.Sprintf("page.goto(%q)", strings.TrimSpace(baseURL))
}

// FormatBlock renders one executed instruction.
func FormatBlock(instruction, code string) string {
	block := "\n" + Separator + "\n// Query: " + instruction + "\n// Code:\n" + code
	return strings.TrimSpace(block)
}

// Transcript is not safe for concurrent use; it belongs to one runner.
type Transcript struct {
	baseURL string
	entries []entity.TranscriptEntry
}

func New(baseURL string) *Transcript {
	return &Transcript{baseURL: baseURL}
}

// Append records an executed instruction. Call it only after the code ran successfully.
func (t *Transcript) Append(instruction, code string) {
	t.entries = append(t.entries, entity.TranscriptEntry{Instruction: instruction, Code: code})
}

func (t *Transcript) Len() int { return len(t.entries) }

func (t *Transcript) Entries() []entity.TranscriptEntry {
	out := make([]entity.TranscriptEntry, len(t.entries))
	copy(out, t.entries)
	return out
}

func (t *Transcript) String() string {
	var sb strings.Builder
	sb.WriteString(NavigationStatement(t.baseURL))
	sb.WriteString("\n")
	for _, e := range t.entries {
		sb.WriteString("\n")
		sb.WriteString(FormatBlock(e.Instruction, e.Code))
	}
	return sb.String()
}

// OutputFileName derives <source-stem>_<config-stem>.js.
func OutputFileName(sourcePath, configPath string) string {
	return stem(sourcePath) + "_" + stem(configPath) + Extension
}

func stem(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// Writer persists transcripts into dir on fs.
type Writer struct {
	fs  afero.Fs
	dir string
}

func NewWriter(fs afero.Fs, dir string) *Writer {
	if fs == nil {
		fs = afero.NewOsFs()
	}
	if dir == "" {
		dir = "."
	}
	return &Writer{fs: fs, dir: dir}
}

// Save overwrites name with the current transcript and returns the written path.
func (w *Writer) Save(name string, t *Transcript) (string, error) {
	if err := w.fs.MkdirAll(w.dir, 0o755); err != nil {
		return "", fmt.Errorf("create output dir: %w", err)
	}
	path := filepath.Join(w.dir, name)
	if err := afero.WriteFile(w.fs, path, []byte(t.String()), os.FileMode(0o644)); err != nil {
		return "", fmt.Errorf("write transcript: %w", err)
	}
	return path, nil
}
