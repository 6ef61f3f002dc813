package entity

import "strings"

// TranscriptEntry is one successfully executed instruction and its cleaned code
type TranscriptEntry struct {
	Instruction string
	Code        string
}

// SessionState is owned by a single interactive runner.
type SessionState struct {
	BaseURL  string
	FullCode string
}

// ExecutionStatus is the banner shown after an execution attempt.
type ExecutionStatus struct {
	OK      bool   `json:"ok"`
	Message string `json:"message"`
}

const (
	successMessage = "Success!"
	failurePrefix  = "Failure! Open the Debug tab for more information"
)

func StatusSuccess() ExecutionStatus {
	return ExecutionStatus{OK: true, Message: successMessage}
}

func StatusFailure(reason string) ExecutionStatus {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return ExecutionStatus{Message: failurePrefix}
	}
	return ExecutionStatus{Message: failurePrefix + ": " + reason}
}
