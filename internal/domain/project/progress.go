package project

type EventType string

const (
	EventTypeProgress EventType = "progress"
	EventTypeComplete EventType = "complete"
)

type ImportResults struct {
	Inserted int `json:"inserted"`
	Updated  int `json:"updated"`
	Skipped  int `json:"skipped"`
	Errors   int `json:"errors"`
}

type ProgressEvent struct {
	Type          EventType      `json:"type"`
	ImportID      string         `json:"importId"`
	Progress      int            `json:"progress"`
	TotalRows     int            `json:"totalRows"`
	ProcessedRows int            `json:"processedRows"`
	SuccessCount  int            `json:"successCount"`
	ErrorCount    int            `json:"errorCount"`
	Status        JobStatus      `json:"status,omitempty"`
	Results       *ImportResults `json:"results,omitempty"`
}

func (e ProgressEvent) IsTerminal() bool {
	return e.Type == EventTypeComplete
}
