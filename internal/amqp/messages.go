package amqp

import (
	"encoding/json"
	"errors"
	"time"
)

// ImportRequestedMessage asks a worker to import an uploaded CSV file.
// The file itself stays in the upload source; only its name travels.
type ImportRequestedMessage struct {
	FileName  string    `json:"file_name"`
	RequestID string    `json:"request_id,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

func NewImportRequestedMessage(fileName, requestID string) *ImportRequestedMessage {
	return &ImportRequestedMessage{
		FileName:  fileName,
		RequestID: requestID,
		Timestamp: time.Now(),
	}
}

// ToJSON converts the message to JSON bytes
func (m *ImportRequestedMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// ImportRequestedMessageFromJSON decodes and validates a message body.
func ImportRequestedMessageFromJSON(data []byte) (*ImportRequestedMessage, error) {
	var msg ImportRequestedMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	if msg.FileName == "" {
		return nil, errors.New("import message without file name")
	}
	return &msg, nil
}
