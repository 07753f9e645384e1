package database

import (
	"time"

	"gorm.io/gorm"
)

// MessageRecord is one decoded message event
type MessageRecord struct {
	ID          uint      `gorm:"primarykey" json:"id"`
	EventID     string    `gorm:"uniqueIndex;size:36;not null" json:"event_id"`
	Channel     string    `gorm:"index;size:64;not null" json:"channel"`
	Time        time.Time `gorm:"index;not null" json:"time"`
	DUID        string    `gorm:"size:16;not null" json:"duid"`
	NAC         string    `gorm:"size:3" json:"nac"`
	Kind        string    `gorm:"index;size:64" json:"kind"`
	Valid       bool      `json:"valid"`
	Text        string    `json:"text"`
	Identifiers string    `json:"identifiers"` // JSON array
	CreatedAt   time.Time `json:"created_at"`
}

// TableName specifies the table name for MessageRecord
func (MessageRecord) TableName() string {
	return "messages"
}

// BeforeCreate hook to ensure timestamps are set
func (m *MessageRecord) BeforeCreate(tx *gorm.DB) error {
	if m.CreatedAt.IsZero() {
		m.CreatedAt = time.Now()
	}
	if m.Time.IsZero() {
		m.Time = m.CreatedAt
	}
	if m.Identifiers == "" {
		m.Identifiers = "[]"
	}
	return nil
}

// CallRecord is one voice call seen on a traffic channel
type CallRecord struct {
	ID         uint      `gorm:"primarykey" json:"id"`
	Channel    string    `gorm:"index;size:64;not null" json:"channel"`
	NAC        string    `gorm:"size:3" json:"nac"`
	Talkgroup  int       `gorm:"index" json:"talkgroup"`
	Target     int       `json:"target,omitempty"` // unit to unit calls
	Source     int       `gorm:"index" json:"source"`
	Encrypted  bool      `json:"encrypted"`
	Emergency  bool      `json:"emergency"`
	Duration   float64   `gorm:"not null" json:"duration"` // Duration in seconds
	StartTime  time.Time `gorm:"index;not null" json:"start_time"`
	EndTime    time.Time `gorm:"not null" json:"end_time"`
	FrameCount int       `gorm:"default:0" json:"frame_count"`
	Reason     string    `gorm:"size:16" json:"reason"` // terminator or timeout
	CreatedAt  time.Time `json:"created_at"`
}

// TableName specifies the table name for CallRecord
func (CallRecord) TableName() string {
	return "calls"
}

// BeforeCreate hook to ensure StartTime and EndTime are set
func (c *CallRecord) BeforeCreate(tx *gorm.DB) error {
	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now()
	}
	if c.StartTime.IsZero() {
		c.StartTime = time.Now()
	}
	if c.EndTime.IsZero() {
		c.EndTime = c.StartTime
	}
	return nil
}
