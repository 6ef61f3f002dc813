package entity

import "time"

// TelemetryEvent describes one instruction attempt. Delivery is best-effort.
type TelemetryEvent struct {
	ID           string         `json:"id"`
	ModelName    string         `json:"model_name"`
	Code         string         `json:"code"`
	Screenshot   []byte         `json:"screenshot"`
	HTML         string         `json:"html"`
	Evidence     []EvidenceNode `json:"evidence"`
	Instruction  string         `json:"instruction"`
	BaseURL      string         `json:"base_url"`
	SessionLabel string         `json:"session_label"`
	Timestamp    time.Time      `json:"timestamp"`
}
