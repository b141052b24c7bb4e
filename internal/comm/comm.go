package comm

import (
	"encoding/json"
	"time"
)

// Message is the envelope exchanged over NATS and the UI websocket.
type Message struct {
	Type       string          `json:"type"` // e.g. "dataset-updated", "sync-failure"
	Data       json.RawMessage `json:"data"`
	InstanceId string          `json:"instanceid"`
}

const (
	TypeDatasetUpdated = "dataset-updated"
	TypeSyncFailure    = "sync-failure"
)

// DatasetNotice announces that a snapshot with the given version is live.
type DatasetNotice struct {
	Version   int64     `json:"version"`
	Timestamp time.Time `json:"timestamp"`
}

// SyncFault tells the operator a snapshot publish gave up. Record-write
// failures carry their backup path in the HTTP response instead; they
// never reach this channel.
type SyncFault struct {
	Error string `json:"error"`
}

// Envelope marshals a payload into a Message of the given type.
func Envelope(msgType, instanceId string, payload any) (*Message, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return &Message{Type: msgType, Data: data, InstanceId: instanceId}, nil
}
