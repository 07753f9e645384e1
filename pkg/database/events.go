package database

import (
	"encoding/json"
	"fmt"

	"github.com/dbehnke/p25-nexus/pkg/p25"
)

// NewMessageRecord flattens a processor event into a storable row
func NewMessageRecord(ev p25.Event) (*MessageRecord, error) {
	ids := []byte("[]")
	if len(ev.Identifiers) > 0 {
		var err error
		ids, err = json.Marshal(ev.Identifiers)
		if err != nil {
			return nil, fmt.Errorf("failed to encode identifiers: %w", err)
		}
	}
	msg := ev.Message
	return &MessageRecord{
		EventID:     ev.ID,
		Channel:     ev.Channel,
		Time:        ev.Time,
		DUID:        msg.DUID().String(),
		NAC:         fmt.Sprintf("%03X", msg.NAC()),
		Kind:        msg.Kind(),
		Valid:       msg.IsValid(),
		Text:        msg.String(),
		Identifiers: string(ids),
	}, nil
}

// Record stores an event
func (r *MessageRepository) Record(ev p25.Event) error {
	m, err := NewMessageRecord(ev)
	if err != nil {
		return err
	}
	return r.Create(m)
}
