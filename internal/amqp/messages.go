package amqp

import (
	"encoding/json"
	"fmt"
	"time"

	"billtrack/internal/core"
)

// ChangeMessage is the wire form of a change notification. Receivers treat it
// as a trigger and refetch, so it only identifies what changed.
type ChangeMessage struct {
	UserID    string    `json:"user_id"`
	ID        string    `json:"id"`
	Op        string    `json:"op"`
	Timestamp time.Time `json:"timestamp"`
}

func NewChangeMessage(c core.Change) *ChangeMessage {
	at := c.At
	if at.IsZero() {
		at = time.Now()
	}
	return &ChangeMessage{
		UserID:    c.UserID,
		ID:        c.ID,
		Op:        string(c.Op),
		Timestamp: at.UTC(),
	}
}

func (m *ChangeMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

func ChangeMessageFromJSON(data []byte) (*ChangeMessage, error) {
	var msg ChangeMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	if msg.UserID == "" {
		return nil, fmt.Errorf("change message without user_id")
	}
	return &msg, nil
}

func (m *ChangeMessage) ToChange() core.Change {
	return core.Change{UserID: m.UserID, ID: m.ID, Op: core.ChangeOp(m.Op), At: m.Timestamp}
}

// RoutingKey addresses the changes of one principal on the exchange.
func RoutingKey(principal string) string {
	return "transactions." + principal
}
