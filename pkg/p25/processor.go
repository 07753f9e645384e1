package p25

import (
	"encoding/json"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dbehnke/p25-nexus/pkg/bandplan"
	"github.com/dbehnke/p25-nexus/pkg/bits"
	"github.com/dbehnke/p25-nexus/pkg/edac"
	"github.com/dbehnke/p25-nexus/pkg/identifier"
	"github.com/dbehnke/p25-nexus/pkg/logger"
)

// ErrNoSequence is returned for a data block that follows no PDU header
var ErrNoSequence = errors.New("no pdu sequence in progress")

// Event is a decoded message leaving the processor
type Event struct {
	ID          string
	Channel     string
	Time        time.Time
	Message     Message
	Identifiers []identifier.Identifier
}

// MarshalJSON flattens the message into the fields sinks publish
func (e Event) MarshalJSON() ([]byte, error) {
	ids := e.Identifiers
	if ids == nil {
		ids = []identifier.Identifier{}
	}
	return json.Marshal(struct {
		ID          string                  `json:"id"`
		Channel     string                  `json:"channel"`
		Time        time.Time               `json:"time"`
		DUID        string                  `json:"duid"`
		NAC         string                  `json:"nac"`
		Kind        string                  `json:"kind"`
		Valid       bool                    `json:"valid"`
		Text        string                  `json:"text"`
		Identifiers []identifier.Identifier `json:"identifiers"`
	}{
		ID:          e.ID,
		Channel:     e.Channel,
		Time:        e.Time,
		DUID:        e.Message.DUID().String(),
		NAC:         nacHex(e.Message.NAC()),
		Kind:        e.Message.Kind(),
		Valid:       e.Message.IsValid(),
		Text:        e.Message.String(),
		Identifiers: ids,
	})
}

// Listener receives every event a processor emits
type Listener func(Event)

// ProcessorStats are running counters of one processor
type ProcessorStats struct {
	Frames           int64 `json:"frames"`
	DataBlocks       int64 `json:"data_blocks"`
	Events           int64 `json:"events"`
	RejectedBlocks   int64 `json:"rejected_blocks"`
	DroppedSequences int64 `json:"dropped_sequences"`
	BandUpdates      int64 `json:"band_updates"`
}

// Processor decodes the frames of one channel. ProcessFrame,
// ProcessDataBlock and Reset must be called from a single goroutine;
// Stats may be read concurrently.
type Processor struct {
	channel string
	plan    *bandplan.Plan
	nextID  func() string
	now     func() time.Time
	log     *logger.Logger

	listenersMu sync.RWMutex
	listeners   []Listener

	pending Message
	seq     *PDUSequence

	frames, blocks, events, rejected, dropped, bandUpdates atomic.Int64
}

// NewProcessor creates a processor for channel. Channel identifiers are
// resolved through plan, which also receives the bands announced on the
// channel. nextID supplies event IDs.
func NewProcessor(channel string, plan *bandplan.Plan, nextID func() string, log *logger.Logger) *Processor {
	if plan == nil {
		plan = bandplan.New()
	}
	return &Processor{
		channel: channel,
		plan:    plan,
		nextID:  nextID,
		now:     time.Now,
		log:     log.WithComponent("p25." + channel),
	}
}

// Channel returns the channel name events are tagged with
func (p *Processor) Channel() string { return p.channel }

// Plan returns the band plan of the channel
func (p *Processor) Plan() *bandplan.Plan { return p.plan }

// AddListener registers l for all subsequent events
func (p *Processor) AddListener(l Listener) {
	p.listenersMu.Lock()
	defer p.listenersMu.Unlock()
	p.listeners = append(p.listeners, l)
}

// ProcessFrame decodes a NID bearing frame. A PDU header waiting for data
// blocks is dropped by any following frame. PDU headers are held until
// their sequence completes, every other message is emitted immediately.
func (p *Processor) ProcessFrame(frame *bits.BitField, nidCRC edac.CRC) Message {
	p.frames.Add(1)
	p.dropPending("superseded by frame")

	msg := NewMessage(frame, nidCRC)

	if iden, ok := msg.(*IdentifierUpdateMessage); ok {
		p.applyBand(iden)
	}

	if seq := sequenceOf(msg); seq != nil && !seq.IsComplete() {
		p.pending = msg
		p.seq = seq
		p.log.Debug("PDU header awaiting data blocks",
			logger.String("kind", msg.Kind()),
			logger.Int("blocks", seq.BlocksToFollow()))
		return msg
	}

	p.emit(msg)
	return msg
}

// ProcessDataBlock appends a packet data block to the pending sequence. The
// message is emitted once its last block arrives.
func (p *Processor) ProcessDataBlock(bf *bits.BitField) error {
	p.blocks.Add(1)
	if p.seq == nil {
		p.rejected.Add(1)
		return ErrNoSequence
	}

	block, err := NewDataBlock(bf, p.seq.Confirmed())
	if err == nil {
		err = p.seq.AddDataBlock(block)
	}
	if err != nil {
		p.rejected.Add(1)
		p.log.Debug("Rejected data block", logger.Error(err))
		return err
	}

	if p.seq.IsComplete() {
		msg := p.pending
		p.pending, p.seq = nil, nil
		p.emit(msg)
	}
	return nil
}

// Reset discards any pending sequence, e.g. after loss of sync
func (p *Processor) Reset() {
	p.dropPending("reset")
}

// Stats returns a snapshot of the counters
func (p *Processor) Stats() ProcessorStats {
	return ProcessorStats{
		Frames:           p.frames.Load(),
		DataBlocks:       p.blocks.Load(),
		Events:           p.events.Load(),
		RejectedBlocks:   p.rejected.Load(),
		DroppedSequences: p.dropped.Load(),
		BandUpdates:      p.bandUpdates.Load(),
	}
}

func (p *Processor) dropPending(reason string) {
	if p.seq == nil {
		return
	}
	p.dropped.Add(1)
	p.log.Debug("Dropped incomplete PDU sequence",
		logger.String("reason", reason),
		logger.String("state", p.seq.String()))
	p.pending, p.seq = nil, nil
}

func (p *Processor) applyBand(m *IdentifierUpdateMessage) {
	if !m.IsValid() {
		return
	}
	band := m.Band()
	if err := band.Validate(); err != nil {
		p.log.Warn("Ignoring identifier update", logger.Error(err))
		return
	}
	p.plan.Put(band)
	p.bandUpdates.Add(1)
}

func (p *Processor) emit(msg Message) {
	ev := Event{
		ID:          p.nextID(),
		Channel:     p.channel,
		Time:        p.now(),
		Message:     msg,
		Identifiers: p.resolve(msg.Identifiers()),
	}
	p.events.Add(1)

	p.listenersMu.RLock()
	listeners := p.listeners
	p.listenersMu.RUnlock()
	for _, l := range listeners {
		l(ev)
	}
}

// resolve fills in channel frequencies known to the band plan
func (p *Processor) resolve(ids []identifier.Identifier) []identifier.Identifier {
	out := make([]identifier.Identifier, len(ids))
	for i, id := range ids {
		if ch, ok := id.(identifier.Channel); ok {
			id = p.plan.Resolve(ch)
		}
		out[i] = id
	}
	return out
}

// sequenceOf returns the reassembler of any PDU header variant
func sequenceOf(msg Message) *PDUSequence {
	if s, ok := msg.(interface{ Sequence() *PDUSequence }); ok {
		return s.Sequence()
	}
	return nil
}
