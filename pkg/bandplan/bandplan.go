// Package bandplan maps P25 channel identifiers to RF frequencies.
package bandplan

import (
	"fmt"
	"os"
	"sort"
	"sync"

	"github.com/dbehnke/p25-nexus/pkg/identifier"
	"gopkg.in/yaml.v3"
)

// Band is one channel identifier entry, as announced by IDEN_UP messages
type Band struct {
	ID               int   `yaml:"id" json:"id"`
	BaseHz           int64 `yaml:"base_hz" json:"base_hz"`
	SpacingHz        int64 `yaml:"spacing_hz" json:"spacing_hz"`
	TransmitOffsetHz int64 `yaml:"transmit_offset_hz" json:"transmit_offset_hz"`
	BandwidthHz      int64 `yaml:"bandwidth_hz" json:"bandwidth_hz"`
}

// Downlink returns the base station transmit frequency of a channel number
func (b Band) Downlink(channel int) int64 {
	return b.BaseHz + b.SpacingHz*int64(channel)
}

// Uplink returns the subscriber transmit frequency of a channel number
func (b Band) Uplink(channel int) int64 {
	return b.Downlink(channel) + b.TransmitOffsetHz
}

// Validate checks the identifier range and that base and spacing are positive
func (b Band) Validate() error {
	if b.ID < 0 || b.ID > 15 {
		return fmt.Errorf("band id %d out of range 0-15", b.ID)
	}
	if b.BaseHz <= 0 {
		return fmt.Errorf("band %d: base frequency must be positive", b.ID)
	}
	if b.SpacingHz <= 0 {
		return fmt.Errorf("band %d: channel spacing must be positive", b.ID)
	}
	return nil
}

// Plan holds the bands known for one site. Safe for concurrent use.
type Plan struct {
	mu    sync.RWMutex
	bands map[int]Band
}

// New creates an empty plan
func New() *Plan {
	return &Plan{bands: make(map[int]Band)}
}

// Put adds or replaces a band
func (p *Plan) Put(b Band) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.bands[b.ID] = b
}

// Lookup returns the band for a channel identifier
func (p *Plan) Lookup(id int) (Band, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	b, ok := p.bands[id]
	return b, ok
}

// Bands returns all bands ordered by ID
func (p *Plan) Bands() []Band {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make([]Band, 0, len(p.bands))
	for _, b := range p.bands {
		out = append(out, b)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Resolve fills in the frequencies of ch when its band is known
func (p *Plan) Resolve(ch identifier.Channel) identifier.Channel {
	if b, ok := p.Lookup(ch.Band); ok {
		ch.Downlink = b.Downlink(ch.Number)
		ch.Uplink = b.Uplink(ch.Number)
	}
	return ch
}

type planFile struct {
	Bands []Band `yaml:"bands"`
}

// Load reads a YAML seed file of bands
func Load(path string) (*Plan, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read band plan: %w", err)
	}
	return Parse(data)
}

// Parse decodes a YAML band list
func Parse(data []byte) (*Plan, error) {
	var f planFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse band plan: %w", err)
	}
	p := New()
	for _, b := range f.Bands {
		if err := b.Validate(); err != nil {
			return nil, err
		}
		p.Put(b)
	}
	return p, nil
}
