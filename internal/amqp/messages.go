package amqp

import (
	"encoding/json"
	"time"
)

// TransactionRecordedMessage is the lightweight event published whenever a
// transaction lands. It carries only the coordinates of the owner-month to
// refresh; the worker re-reads the transactions themselves.
type TransactionRecordedMessage struct {
	TransactionID string    `json:"transactionId"`
	OwnerUserID   string    `json:"ownerUserId"`
	Month         string    `json:"month"`
	Timestamp     time.Time `json:"timestamp"`
}

func NewTransactionRecordedMessage(transactionID, ownerUserID, month string) *TransactionRecordedMessage {
	return &TransactionRecordedMessage{
		TransactionID: transactionID,
		OwnerUserID:   ownerUserID,
		Month:         month,
		Timestamp:     time.Now(),
	}
}

// ToJSON converts the message to JSON bytes
func (m *TransactionRecordedMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// FromJSON creates a message from JSON bytes
func TransactionRecordedMessageFromJSON(data []byte) (*TransactionRecordedMessage, error) {
	var msg TransactionRecordedMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}
