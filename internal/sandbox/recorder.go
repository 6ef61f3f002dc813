package sandbox

import (
	"math"
	"time"

	"github.com/dop251/goja"
)

// recorder is the dry-run implementation of `page`.
type recorder struct {
	vm       *goja.Runtime
	max      int
	commands []Command
}

func (r *recorder) bind() error {
	page := r.vm.NewObject()

	methods := map[string]func(goja.FunctionCall) goja.Value{
		"goto": func(call goja.FunctionCall) goja.Value {
			r.push(Command{Op: OpGoto, Value: r.stringArg(call, OpGoto, 0, "url")})
			return goja.Undefined()
		},
		"click": func(call goja.FunctionCall) goja.Value {
			r.push(Command{Op: OpClick, Selector: r.stringArg(call, OpClick, 0, "selector")})
			return goja.Undefined()
		},
		"fill":  r.fill,
		"type":  r.fill,
		"press": r.press,
		"waitForSelector": func(call goja.FunctionCall) goja.Value {
			r.push(Command{Op: OpWaitFor, Selector: r.stringArg(call, OpWaitFor, 0, "selector")})
			return goja.Undefined()
		},
		"innerText": func(call goja.FunctionCall) goja.Value {
			r.push(Command{Op: OpInnerText, Selector: r.stringArg(call, OpInnerText, 0, "selector")})
			return r.vm.ToValue("")
		},
		"goBack": func(goja.FunctionCall) goja.Value {
			r.push(Command{Op: OpGoBack})
			return goja.Undefined()
		},
		"scroll": func(call goja.FunctionCall) goja.Value {
			direction := "down"
			if v := call.Argument(0); !goja.IsUndefined(v) && !goja.IsNull(v) {
				direction = v.String()
			}
			r.push(Command{Op: OpScroll, Value: direction})
			return goja.Undefined()
		},
		"wait":           r.wait,
		"waitForTimeout": r.wait,
	}

	for name, fn := range methods {
		if err := page.Set(name, fn); err != nil {
			return err
		}
	}
	return r.vm.GlobalObject().Set(Binding, page)
}

func (r *recorder) fill(call goja.FunctionCall) goja.Value {
	r.push(Command{
		Op:       OpFill,
		Selector: r.stringArg(call, OpFill, 0, "selector"),
		Value:    r.stringArg(call, OpFill, 1, "text"),
	})
	return goja.Undefined()
}

// press accepts press(key) and press(selector, key).
func (r *recorder) press(call goja.FunctionCall) goja.Value {
	cmd := Command{Op: OpPress}
	if len(call.Arguments) >= 2 {
		cmd.Selector = r.stringArg(call, OpPress, 0, "selector")
		cmd.Value = r.stringArg(call, OpPress, 1, "key")
	} else {
		cmd.Value = r.stringArg(call, OpPress, 0, "key")
	}
	r.push(cmd)
	return goja.Undefined()
}

func (r *recorder) wait(call goja.FunctionCall) goja.Value {
	v := call.Argument(0)
	if goja.IsUndefined(v) || goja.IsNull(v) {
		panic(r.vm.NewTypeError("page.%s: missing milliseconds argument", OpWait))
	}
	r.push(Command{Op: OpWait, Wait: millis(v.ToInteger())})
	return goja.Undefined()
}

// millis saturates instead of overflowing so out-of-range waits still fail validation.
func millis(ms int64) time.Duration {
	const limit = math.MaxInt64 / int64(time.Millisecond)
	switch {
	case ms > limit:
		return time.Duration(math.MaxInt64)
	case ms < -limit:
		return time.Duration(math.MinInt64)
	}
	return time.Duration(ms) * time.Millisecond
}

func (r *recorder) stringArg(call goja.FunctionCall, op Op, idx int, name string) string {
	v := call.Argument(idx)
	if goja.IsUndefined(v) || goja.IsNull(v) {
		panic(r.vm.NewTypeError("page.%s: missing %s argument", op, name))
	}
	return v.String()
}

func (r *recorder) push(c Command) {
	if len(r.commands) >= r.max {
		panic(r.vm.NewGoError(ErrTooManyCommands))
	}
	r.commands = append(r.commands, c)
}
