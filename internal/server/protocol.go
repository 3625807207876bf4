package server

import (
	"encoding/json"

	lserrors "github.com/Aman-CERP/linesearch/internal/errors"
)

// Wire actions.
const (
	ActionCreateLog = "create_log"
	ActionReadLogs  = "read_logs"
)

// Message is a decoded request. Pointer fields distinguish an absent key
// from an empty value.
type Message struct {
	Action *string `json:"action"`
	Query  *string `json:"query,omitempty"`
	Algo   *string `json:"algo,omitempty"`
}

// NewCreateLog builds a create_log request.
func NewCreateLog(query, algo string) Message {
	action := ActionCreateLog
	return Message{Action: &action, Query: &query, Algo: &algo}
}

// NewReadLogs builds a read_logs request.
func NewReadLogs() Message {
	action := ActionReadLogs
	return Message{Action: &action}
}

// QueryOr returns the query, or def when the key was absent.
func (m Message) QueryOr(def string) string {
	if m.Query == nil {
		return def
	}
	return *m.Query
}

// DecodeMessage parses and validates one request frame. On a validation
// error the partially decoded message is still returned so the reply can
// echo the query.
func DecodeMessage(frame []byte) (Message, error) {
	var msg Message
	if err := json.Unmarshal(frame, &msg); err != nil {
		return Message{}, lserrors.ProtocolError(lserrors.ErrCodeInvalidJSON, "Invalid JSON format")
	}

	if msg.Action == nil {
		return msg, missingKey("action")
	}

	switch *msg.Action {
	case ActionCreateLog:
		if msg.Query == nil {
			return msg, missingKey("query")
		}
		if msg.Algo == nil {
			return msg, missingKey("algo")
		}
	case ActionReadLogs:
	default:
		return msg, lserrors.ProtocolError(lserrors.ErrCodeUnknownAction, "Invalid action").
			WithDetail("action", *msg.Action)
	}
	return msg, nil
}

func missingKey(name string) error {
	return lserrors.ProtocolError(lserrors.ErrCodeMissingField, "Missing key: "+name)
}
