package amqp

import (
	"encoding/json"
	"fmt"
	"time"

	"financeangle/internal/core"
)

// Reasons a monthly position is recomputed.
const (
	ReasonSnapshotCreated = "snapshot_created"
	ReasonSnapshotDeleted = "snapshot_deleted"
	ReasonScheduled       = "scheduled"
)

// PositionRecomputeMessage asks the worker to rebuild one month's account
// position. It only names the month; the worker reads snapshots from the
// database.
type PositionRecomputeMessage struct {
	Month     string    `json:"month"`
	Reason    string    `json:"reason"`
	Timestamp time.Time `json:"timestamp"`
}

func NewPositionRecomputeMessage(month core.Month, reason string) *PositionRecomputeMessage {
	return &PositionRecomputeMessage{
		Month:     month.String(),
		Reason:    reason,
		Timestamp: time.Now(),
	}
}

// ToJSON converts the message to JSON bytes
func (m *PositionRecomputeMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// TargetMonth parses the month the message refers to.
func (m *PositionRecomputeMessage) TargetMonth() (core.Month, error) {
	return core.ParseMonth(m.Month)
}

// PositionRecomputeMessageFromJSON decodes a message and rejects unknown months.
func PositionRecomputeMessageFromJSON(data []byte) (*PositionRecomputeMessage, error) {
	var msg PositionRecomputeMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	if _, err := msg.TargetMonth(); err != nil {
		return nil, fmt.Errorf("position recompute message: %w", err)
	}
	return &msg, nil
}
