package database

import (
	"time"

	"gorm.io/gorm"
)

// MessageRepository handles decoded message database operations
type MessageRepository struct {
	db *gorm.DB
}

// NewMessageRepository creates a new message repository
func NewMessageRepository(db *gorm.DB) *MessageRepository {
	return &MessageRepository{db: db}
}

// Create adds a new message record
func (r *MessageRepository) Create(m *MessageRecord) error {
	return r.db.Create(m).Error
}

// GetRecent retrieves the most recent N messages, optionally for one channel
func (r *MessageRepository) GetRecent(channel string, limit int) ([]MessageRecord, error) {
	var messages []MessageRecord
	q := r.db.Order("time DESC").Order("id DESC").Limit(limit)
	if channel != "" {
		q = q.Where("channel = ?", channel)
	}
	err := q.Find(&messages).Error
	return messages, err
}

// GetByKind retrieves messages of one kind, for example GRP_V_CH_GRANT
func (r *MessageRepository) GetByKind(kind string, limit int) ([]MessageRecord, error) {
	var messages []MessageRecord
	err := r.db.Where("kind = ?", kind).
		Order("time DESC").
		Limit(limit).
		Find(&messages).Error
	return messages, err
}

// Count returns the number of stored messages
func (r *MessageRepository) Count() (int64, error) {
	var total int64
	err := r.db.Model(&MessageRecord{}).Count(&total).Error
	return total, err
}

// DeleteOlderThan deletes messages older than the specified time
func (r *MessageRepository) DeleteOlderThan(before time.Time) (int64, error) {
	result := r.db.Where("time < ?", before).Delete(&MessageRecord{})
	return result.RowsAffected, result.Error
}

// CallRepository handles voice call database operations
type CallRepository struct {
	db *gorm.DB
}

// NewCallRepository creates a new call repository
func NewCallRepository(db *gorm.DB) *CallRepository {
	return &CallRepository{db: db}
}

// Create adds a new call record
func (r *CallRepository) Create(c *CallRecord) error {
	return r.db.Create(c).Error
}

// GetRecent retrieves the most recent N calls
func (r *CallRepository) GetRecent(limit int) ([]CallRecord, error) {
	var calls []CallRecord
	err := r.db.Order("start_time DESC").Limit(limit).Find(&calls).Error
	return calls, err
}

// GetRecentPaginated retrieves calls with pagination
func (r *CallRepository) GetRecentPaginated(page, perPage int) ([]CallRecord, int64, error) {
	var calls []CallRecord
	var total int64

	if err := r.db.Model(&CallRecord{}).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	offset := (page - 1) * perPage
	err := r.db.Order("start_time DESC").
		Offset(offset).
		Limit(perPage).
		Find(&calls).Error

	return calls, total, err
}

// GetByTalkgroup retrieves calls for a specific talkgroup
func (r *CallRepository) GetByTalkgroup(tg int, limit int) ([]CallRecord, error) {
	var calls []CallRecord
	err := r.db.Where("talkgroup = ?", tg).
		Order("start_time DESC").
		Limit(limit).
		Find(&calls).Error
	return calls, err
}

// GetBySource retrieves calls made by a specific radio
func (r *CallRepository) GetBySource(source int, limit int) ([]CallRecord, error) {
	var calls []CallRecord
	err := r.db.Where("source = ?", source).
		Order("start_time DESC").
		Limit(limit).
		Find(&calls).Error
	return calls, err
}

// DeleteOlderThan deletes calls older than the specified time
func (r *CallRepository) DeleteOlderThan(before time.Time) (int64, error) {
	result := r.db.Where("start_time < ?", before).Delete(&CallRecord{})
	return result.RowsAffected, result.Error
}
