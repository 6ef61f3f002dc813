package agent

import "browser-pilot/internal/entity"

const ProcessingMessage = "Processing..."

// Snapshot is what the display shows of the browser.
type Snapshot struct {
	URL        string `json:"url"`
	Screenshot []byte `json:"screenshot"`
}

// Execution is the result of running one piece of code.
type Execution struct {
	Log      string                 `json:"log"`
	Code     string                 `json:"code"`
	HTML     string                 `json:"html"`
	Status   entity.ExecutionStatus `json:"status"`
	FullCode string                 `json:"full_code"`
}

// Outcome is everything one submitted instruction produced.
type Outcome struct {
	Instruction string    `json:"instruction"`
	Sources     string    `json:"sources"`
	Execution   Execution `json:"execution"`
	Snapshot    Snapshot  `json:"snapshot"`
}

// Display receives pipeline updates as they happen. Calls are made from the
// goroutine running the instruction, in pipeline order.
type Display interface {
	Status(message string)
	PartialCode(code string)
	Sources(sources string)
	Execution(exec Execution)
	Browser(snap Snapshot)
}

type nopDisplay struct{}

func (nopDisplay) Status(string)       {}
func (nopDisplay) PartialCode(string)  {}
func (nopDisplay) Sources(string)      {}
func (nopDisplay) Execution(Execution) {}
func (nopDisplay) Browser(Snapshot)    {}
