// Package calllog follows voice calls on traffic channels and stores each
// finished call.
package calllog

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/dbehnke/p25-nexus/pkg/database"
	"github.com/dbehnke/p25-nexus/pkg/logger"
	"github.com/dbehnke/p25-nexus/pkg/p25"
)

// DefaultMinDuration drops calls shorter than one LDU pair
const DefaultMinDuration = 500 * time.Millisecond

// Call end reasons
const (
	ReasonTerminator = "terminator"
	ReasonTimeout    = "timeout"
	ReasonSuperseded = "superseded"
)

// Store persists finished calls
type Store interface {
	Create(c *database.CallRecord) error
}

// Call is a call in progress
type Call struct {
	Channel    string    `json:"channel"`
	NAC        int       `json:"nac"`
	Talkgroup  int       `json:"talkgroup,omitempty"`
	Target     int       `json:"target,omitempty"`
	Source     int       `json:"source,omitempty"`
	Encrypted  bool      `json:"encrypted"`
	Emergency  bool      `json:"emergency"`
	StartTime  time.Time `json:"start_time"`
	LastSeen   time.Time `json:"last_seen"`
	FrameCount int       `json:"frame_count"`
}

// Tracker turns the voice frames of each channel into call records. It is
// safe for concurrent use; Observe is normally registered as a processor
// listener on every traffic channel.
type Tracker struct {
	store       Store
	logger      *logger.Logger
	minDuration time.Duration
	now         func() time.Time

	mu     sync.RWMutex
	active map[string]*Call
}

// NewTracker creates a tracker. store may be nil to follow calls without
// persisting them.
func NewTracker(store Store, minDuration time.Duration, log *logger.Logger) *Tracker {
	return &Tracker{
		store:       store,
		logger:      log.WithComponent("calllog"),
		minDuration: minDuration,
		now:         time.Now,
		active:      make(map[string]*Call),
	}
}

// Observe feeds one processor event
func (t *Tracker) Observe(ev p25.Event) {
	t.mu.Lock()
	defer t.mu.Unlock()

	switch m := ev.Message.(type) {
	case *p25.HDUMessage:
		if !m.IsValid() {
			return
		}
		call := t.touch(ev, m.NAC())
		if call.Talkgroup == 0 {
			call.Talkgroup = m.Talkgroup()
		}
		call.Encrypted = call.Encrypted || m.Encryption().Encrypted()

	case *p25.LDU1Message:
		if !m.IsValid() {
			t.count(ev)
			return
		}
		t.linkControl(ev, m.NAC(), m.LinkControl())

	case *p25.LDU2Message:
		call := t.count(ev)
		if call != nil && m.IsValid() {
			call.Encrypted = call.Encrypted || m.Encryption().Encrypted()
		}

	case *p25.TDULCMessage, *p25.TDUMessage:
		if call, ok := t.active[ev.Channel]; ok {
			call.LastSeen = ev.Time
			t.finish(call, ReasonTerminator)
		}
	}
}

// linkControl opens or updates a call from a voice channel user word. A
// different talkgroup or source on the same channel ends the previous call.
func (t *Tracker) linkControl(ev p25.Event, nac int, lc p25.LinkControl) {
	if !lc.IsStandard() {
		t.count(ev)
		return
	}

	var group, target int
	switch lc.Opcode() {
	case p25.LCGroupVoiceChannelUser:
		group = lc.GroupAddress()
	case p25.LCUnitToUnitVoiceChannelUser:
		target = lc.TargetAddress()
	default:
		t.count(ev)
		return
	}
	source := lc.SourceAddress()

	if call, ok := t.active[ev.Channel]; ok && call.Source != 0 &&
		(call.Talkgroup != group || call.Target != target || call.Source != source) {
		t.finish(call, ReasonSuperseded)
	}

	call := t.touch(ev, nac)
	call.Talkgroup = group
	call.Target = target
	call.Source = source
	opts := lc.ServiceOptions()
	call.Emergency = call.Emergency || opts.Emergency()
	call.Encrypted = call.Encrypted || opts.Encrypted()
}

// touch returns the channel's call, opening one when none is active
func (t *Tracker) touch(ev p25.Event, nac int) *Call {
	call, ok := t.active[ev.Channel]
	if !ok {
		call = &Call{
			Channel:   ev.Channel,
			NAC:       nac,
			StartTime: ev.Time,
		}
		t.active[ev.Channel] = call
		t.logger.Debug("Started tracking call",
			logger.String("channel", ev.Channel),
			logger.String("nac", fmt.Sprintf("%03X", nac)))
	}
	call.LastSeen = ev.Time
	call.FrameCount++
	return call
}

// count adds a voice frame to an active call without opening one
func (t *Tracker) count(ev p25.Event) *Call {
	call, ok := t.active[ev.Channel]
	if !ok {
		return nil
	}
	call.LastSeen = ev.Time
	call.FrameCount++
	return call
}

func (t *Tracker) finish(call *Call, reason string) {
	delete(t.active, call.Channel)

	duration := call.LastSeen.Sub(call.StartTime)
	if duration < t.minDuration {
		t.logger.Debug("Skipped saving very short call",
			logger.String("channel", call.Channel),
			logger.Duration("duration", duration),
			logger.Int("frame_count", call.FrameCount))
		return
	}
	if t.store == nil {
		return
	}

	rec := &database.CallRecord{
		Channel:    call.Channel,
		NAC:        fmt.Sprintf("%03X", call.NAC),
		Talkgroup:  call.Talkgroup,
		Target:     call.Target,
		Source:     call.Source,
		Encrypted:  call.Encrypted,
		Emergency:  call.Emergency,
		Duration:   duration.Seconds(),
		StartTime:  call.StartTime,
		EndTime:    call.LastSeen,
		FrameCount: call.FrameCount,
		Reason:     reason,
	}
	if err := t.store.Create(rec); err != nil {
		t.logger.Error("Failed to save call",
			logger.Error(err),
			logger.String("channel", call.Channel))
		return
	}
	t.logger.Debug("Saved call",
		logger.String("channel", call.Channel),
		logger.Int("talkgroup", call.Talkgroup),
		logger.Int("source", call.Source),
		logger.Float64("duration", rec.Duration),
		logger.String("reason", reason))
}

// CleanupStaleCalls ends calls whose last voice frame is older than maxAge.
// Should be called periodically.
func (t *Tracker) CleanupStaleCalls(maxAge time.Duration) int {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.now()
	ended := 0
	for _, call := range t.active {
		if now.Sub(call.LastSeen) > maxAge {
			t.finish(call, ReasonTimeout)
			ended++
		}
	}
	return ended
}

// ActiveCalls returns a snapshot of the calls in progress ordered by channel
func (t *Tracker) ActiveCalls() []Call {
	t.mu.RLock()
	defer t.mu.RUnlock()

	out := make([]Call, 0, len(t.active))
	for _, call := range t.active {
		out = append(out, *call)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Channel < out[j].Channel })
	return out
}

// GetActiveCallCount returns the number of calls in progress
func (t *Tracker) GetActiveCallCount() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.active)
}
