package models

import "time"

// WebSocketMessage is the envelope broadcast to dashboard clients.
type WebSocketMessage struct {
	Type      string      `json:"type"`  // alert | resolution | snapshot
	Event     string      `json:"event"` // e.g. escalated, resolved, ingested
	Payload   interface{} `json:"payload"`
	Timestamp time.Time   `json:"timestamp"`
}
