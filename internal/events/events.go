package events

import (
	"encoding/json"
	"time"
)

// Version of the Event envelope.
const Version = 1

// Pipeline event types.
const (
	SearchDone           = "search_done"
	OpportunityExtracted = "opportunity_extracted"
	ExtractDone          = "extract_done"
	DraftCreated         = "draft_created"
	RunStarted           = "run_started"
	RunFailed            = "run_failed"

	// Ping is sent once to every new SSE client and never filtered.
	Ping = "ping"
)

// Event is the JSON envelope pushed to SSE clients. RequestID carries the run
// id for pipeline events.
type Event struct {
	Type      string          `json:"type"`
	Version   int             `json:"v"`
	At        time.Time       `json:"at"`
	RequestID string          `json:"request_id,omitempty"`
	Data      json.RawMessage `json:"data,omitempty"`
}

// Publisher is what the pipeline stages need from a Hub.
type Publisher interface {
	Emit(runID, typ string, data any)
}

// MakeEvent encodes one envelope. Data that cannot be marshalled is left out.
func MakeEvent(reqID, typ string, data any) string {
	var raw json.RawMessage
	if data != nil {
		if b, err := json.Marshal(data); err == nil {
			raw = b
		}
	}
	b, _ := json.Marshal(Event{
		Type:      typ,
		Version:   Version,
		At:        time.Now().UTC(),
		RequestID: reqID,
		Data:      raw,
	})
	return string(b)
}
