package amqp

import (
	"encoding/json"
	"fmt"
	"slices"
	"time"
)

// ChangeKind says what happened to the ledger.
type ChangeKind string

const (
	ChangeRecorded ChangeKind = "recorded"
	ChangeDeleted  ChangeKind = "deleted"
)

// LedgerChangedMessage tells dashboards that derived series touching ContoIDs
// are stale. It carries ids only; consumers re-read the ledger.
type LedgerChangedMessage struct {
	Kind          ChangeKind `json:"kind"`
	TransactionID string     `json:"transaction_id"`
	ContoIDs      []string   `json:"conti"`
	Timestamp     time.Time  `json:"timestamp"`
}

// NewLedgerChangedMessage builds a message for the conti a transaction touches.
func NewLedgerChangedMessage(kind ChangeKind, txID string, contoIDs ...string) *LedgerChangedMessage {
	ids := make([]string, 0, len(contoIDs))
	for _, id := range contoIDs {
		if id != "" && !slices.Contains(ids, id) {
			ids = append(ids, id)
		}
	}
	return &LedgerChangedMessage{
		Kind:          kind,
		TransactionID: txID,
		ContoIDs:      ids,
		Timestamp:     time.Now(),
	}
}

// ToJSON converts the message to JSON bytes
func (m *LedgerChangedMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// LedgerChangedMessageFromJSON parses and checks a message body.
func LedgerChangedMessageFromJSON(data []byte) (*LedgerChangedMessage, error) {
	var msg LedgerChangedMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	switch msg.Kind {
	case ChangeRecorded, ChangeDeleted:
	default:
		return nil, fmt.Errorf("unknown change kind %q", msg.Kind)
	}
	return &msg, nil
}
