// Package instructions reads the instruction source file: the first line is the
// base URL, every following non-blank line is one instruction.
package instructions

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"strings"
)

var ErrNoBaseURL = errors.New("instruction source has no base URL")

// Source is a parsed instruction file.
type Source struct {
	Path         string
	BaseURL      string
	Instructions []string
}

// Load parses the instruction file at path.
func Load(path string) (*Source, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open instruction source: %w", err)
	}
	defer f.Close()

	src, err := Parse(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	src.Path = path
	return src, nil
}

// Parse reads a base URL and ordered instructions from r.
func Parse(r io.Reader) (*Source, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)

	src := &Source{}
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if src.BaseURL == "" {
			u, err := url.Parse(line)
			if err != nil || u.Scheme == "" || u.Host == "" {
				return nil, fmt.Errorf("invalid base URL %q", line)
			}
			src.BaseURL = line
			continue
		}
		src.Instructions = append(src.Instructions, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read instruction source: %w", err)
	}
	if src.BaseURL == "" {
		return nil, ErrNoBaseURL
	}
	return src, nil
}
