package sandbox

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"
)

// Op is one allow-listed operation of the `page` handle.
type Op string

const (
	OpGoto      Op = "goto"
	OpClick     Op = "click"
	OpFill      Op = "fill"
	OpPress     Op = "press"
	OpWaitFor   Op = "waitForSelector"
	OpInnerText Op = "innerText"
	OpGoBack    Op = "goBack"
	OpScroll    Op = "scroll"
	OpWait      Op = "wait"
)

// SupportedKeys are the key names accepted by page.press, lower-cased.
var SupportedKeys = []string{"enter", "escape", "tab", "backspace", "arrowdown", "arrowup", "space"}

var (
	ErrEmptyPlan       = errors.New("code performs no page operation")
	ErrTooManyCommands = errors.New("too many page operations")
)

// Command is a single recorded call on `page`.
type Command struct {
	Op       Op
	Selector string
	Value    string
	Wait     time.Duration
}

func (c Command) String() string {
	switch c.Op {
	case OpGoto:
		return fmt.Sprintf("page.goto(%q)", c.Value)
	case OpFill:
		return fmt.Sprintf("page.fill(%q, %q)", c.Selector, c.Value)
	case OpPress:
		if c.Selector != "" {
			return fmt.Sprintf("page.press(%q, %q)", c.Selector, c.Value)
		}
		return fmt.Sprintf("page.press(%q)", c.Value)
	case OpScroll:
		return fmt.Sprintf("page.scroll(%q)", c.Value)
	case OpGoBack:
		return "page.goBack()"
	case OpWait:
		return fmt.Sprintf("page.wait(%d)", c.Wait.Milliseconds())
	default:
		return fmt.Sprintf("page.%s(%q)", c.Op, c.Selector)
	}
}

// Plan is the ordered list of commands a piece of code would perform.
type Plan struct {
	Commands []Command
}

// Validate checks every command before anything touches the browser.
func (p *Plan) Validate(maxWait time.Duration) error {
	if len(p.Commands) == 0 {
		return ErrEmptyPlan
	}
	for i, c := range p.Commands {
		if err := c.validate(maxWait); err != nil {
			return fmt.Errorf("command %d (%s): %w", i+1, c.Op, err)
		}
	}
	return nil
}

func (c Command) validate(maxWait time.Duration) error {
	switch c.Op {
	case OpGoto:
		u, err := url.Parse(c.Value)
		if err != nil {
			return fmt.Errorf("invalid url %q: %w", c.Value, err)
		}
		if u.Scheme != "http" && u.Scheme != "https" {
			return fmt.Errorf("url %q must be absolute http(s)", c.Value)
		}
	case OpClick, OpFill, OpWaitFor, OpInnerText:
		if strings.TrimSpace(c.Selector) == "" {
			return errors.New("empty selector")
		}
	case OpPress:
		if !isSupportedKey(c.Value) {
			return fmt.Errorf("unsupported key %q", c.Value)
		}
	case OpScroll:
		if c.Value != "up" && c.Value != "down" {
			return fmt.Errorf("direction must be up or down, got %q", c.Value)
		}
	case OpWait:
		if c.Wait < 0 || c.Wait > maxWait {
			return fmt.Errorf("wait %s out of range [0, %s]", c.Wait, maxWait)
		}
	case OpGoBack:
	default:
		return fmt.Errorf("operation %q is not allowed", c.Op)
	}
	return nil
}

func isSupportedKey(key string) bool {
	key = strings.ToLower(key)
	for _, k := range SupportedKeys {
		if k == key {
			return true
		}
	}
	return false
}
