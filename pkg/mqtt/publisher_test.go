package mqtt

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"

	"github.com/dbehnke/p25-nexus/pkg/bits"
	"github.com/dbehnke/p25-nexus/pkg/edac"
	"github.com/dbehnke/p25-nexus/pkg/p25"
)

type fakeToken struct {
	err  error
	done chan struct{}
}

func newToken(err error) *fakeToken {
	t := &fakeToken{err: err, done: make(chan struct{})}
	close(t.done)
	return t
}

func (t *fakeToken) Wait() bool                     { return true }
func (t *fakeToken) WaitTimeout(time.Duration) bool { return true }
func (t *fakeToken) Done() <-chan struct{}          { return t.done }
func (t *fakeToken) Error() error                   { return t.err }

type published struct {
	topic    string
	qos      byte
	retained bool
	payload  []byte
}

type fakeClient struct {
	mu           sync.Mutex
	connectErr   error
	publishErr   error
	connected    bool
	disconnected bool
	messages     []published
}

func (c *fakeClient) Connect() paho.Token {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.connected = c.connectErr == nil
	return newToken(c.connectErr)
}

func (c *fakeClient) Publish(topic string, qos byte, retained bool, payload interface{}) paho.Token {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.publishErr == nil {
		c.messages = append(c.messages, published{topic, qos, retained, payload.([]byte)})
	}
	return newToken(c.publishErr)
}

func (c *fakeClient) Disconnect(uint) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.connected = false
	c.disconnected = true
}

func (c *fakeClient) IsConnected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connected
}

func newTestPublisher(cfg Config, client *fakeClient) *Publisher {
	pub := New(cfg, nil)
	pub.newClient = func(opts *paho.ClientOptions) Client {
		return client
	}
	return pub
}

func tduEvent(channel string) p25.Event {
	frame := bits.New(p25.TerminatorDataUnit.FrameSize())
	frame.SetUint(bits.Range(0, 11), 0x293)
	frame.SetUint(bits.Range(12, 15), uint64(p25.TerminatorDataUnit))
	return p25.Event{ID: "ev-1", Channel: channel, Time: time.Unix(0, 0), Message: p25.NewMessage(frame, edac.Pass())}
}

func TestPublisher_StartWhenDisabled(t *testing.T) {
	client := &fakeClient{}
	pub := newTestPublisher(Config{Enabled: false}, client)

	if err := pub.Start(context.Background()); err != nil {
		t.Errorf("Expected no error when disabled, got %v", err)
	}
	if err := pub.Publish(tduEvent("cc1")); err != nil {
		t.Errorf("Expected disabled publish to be a no-op, got %v", err)
	}
	if client.connected {
		t.Error("Expected no connection when disabled")
	}
	pub.Stop()
}

func TestPublisher_PublishEvent(t *testing.T) {
	client := &fakeClient{}
	pub := newTestPublisher(Config{Enabled: true, Broker: "tcp://localhost:1883", TopicPrefix: "p25/test/", QoS: 1, Retained: true}, client)

	if err := pub.Publish(tduEvent("cc1")); !errors.Is(err, ErrNotConnected) {
		t.Fatalf("Expected ErrNotConnected before Start, got %v", err)
	}

	if err := pub.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := pub.Publish(tduEvent("cc1")); err != nil {
		t.Fatalf("Publish: %v", err)
	}

	if len(client.messages) != 1 {
		t.Fatalf("Expected 1 message, got %d", len(client.messages))
	}
	m := client.messages[0]
	if m.topic != "p25/test/cc1/tdu" {
		t.Errorf("Expected topic p25/test/cc1/tdu, got %s", m.topic)
	}
	if m.qos != 1 || !m.retained {
		t.Errorf("Expected qos 1 retained, got qos %d retained %v", m.qos, m.retained)
	}

	var body map[string]interface{}
	if err := json.Unmarshal(m.payload, &body); err != nil {
		t.Fatalf("Expected JSON payload: %v", err)
	}
	if body["id"] != "ev-1" || body["duid"] != "TDU" || body["nac"] != "293" {
		t.Errorf("Unexpected payload %v", body)
	}

	pub.Stop()
	if !client.disconnected {
		t.Error("Expected Stop to disconnect")
	}
	if err := pub.Publish(tduEvent("cc1")); !errors.Is(err, ErrNotConnected) {
		t.Errorf("Expected ErrNotConnected after Stop, got %v", err)
	}
}

func TestPublisher_Errors(t *testing.T) {
	pub := newTestPublisher(Config{Enabled: true, Broker: "tcp://nowhere:1883"}, &fakeClient{connectErr: errors.New("refused")})
	if err := pub.Start(context.Background()); err == nil {
		t.Fatal("Expected connect error")
	}

	client := &fakeClient{publishErr: errors.New("broker gone")}
	pub = newTestPublisher(Config{Enabled: true, Broker: "tcp://localhost:1883"}, client)
	if err := pub.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := pub.Publish(tduEvent("cc1")); err == nil {
		t.Fatal("Expected publish error")
	}
}

func TestPublisher_Topic(t *testing.T) {
	tests := []struct {
		prefix  string
		channel string
		duid    p25.DataUnitID
		want    string
	}{
		{"p25/nexus", "site1", p25.TrunkingSignalingBlock, "p25/nexus/site1/tsbk"},
		{"p25/nexus/", "site1", p25.LogicalDataUnit1, "p25/nexus/site1/ldu1"},
		{"", "vc", p25.PacketDataUnit, "vc/pdu"},
		{"p25", "a/b+c#", p25.HeaderDataUnit, "p25/a_b_c_/hdu"},
		{"p25", "", p25.TerminatorDataUnitLinkControl, "p25/_/tdulc"},
	}
	for _, tt := range tests {
		pub := New(Config{TopicPrefix: tt.prefix}, nil)
		if got := pub.Topic(tt.channel, tt.duid); got != tt.want {
			t.Errorf("Topic(%q, %s) with prefix %q = %q, want %q", tt.channel, tt.duid, tt.prefix, got, tt.want)
		}
	}
}
