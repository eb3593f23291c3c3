package amqp

import (
	"encoding/json"
	"time"
)

// StatsRefreshMessage asks the worker to recompute the cached monthly totals
// for one user and month. It carries only identifiers, the worker reads the
// current data from the database.
type StatsRefreshMessage struct {
	UserID    string    `json:"user_id"`
	Month     string    `json:"month"`
	Timestamp time.Time `json:"timestamp"`
}

func NewStatsRefreshMessage(userID, month string) *StatsRefreshMessage {
	return &StatsRefreshMessage{
		UserID:    userID,
		Month:     month,
		Timestamp: time.Now(),
	}
}

func (m *StatsRefreshMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

func StatsRefreshMessageFromJSON(data []byte) (*StatsRefreshMessage, error) {
	var msg StatsRefreshMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}
