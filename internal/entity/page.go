package entity

import "time"

// PageState is a snapshot of the page right before the engine is asked for code.
// Never reuse it across instructions: prior code may have navigated away.
type PageState struct {
	URL        string
	HTML       string
	CapturedAt time.Time
}
