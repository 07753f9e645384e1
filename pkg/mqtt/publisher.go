package mqtt

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"

	"github.com/dbehnke/p25-nexus/pkg/logger"
	"github.com/dbehnke/p25-nexus/pkg/p25"
)

// ErrNotConnected is returned when publishing before Start succeeded
var ErrNotConnected = errors.New("mqtt publisher not connected")

const (
	connectTimeout = 10 * time.Second
	publishTimeout = 5 * time.Second
)

// Config holds MQTT publisher configuration
type Config struct {
	Enabled     bool
	Broker      string
	TopicPrefix string
	ClientID    string
	Username    string
	Password    string
	QoS         byte
	Retained    bool
}

// Client is the part of the paho client the publisher uses
type Client interface {
	Connect() paho.Token
	Publish(topic string, qos byte, retained bool, payload interface{}) paho.Token
	Disconnect(quiesce uint)
	IsConnected() bool
}

// Publisher publishes decoded messages as JSON, one topic per channel and
// data unit: <prefix>/<channel>/<duid>
type Publisher struct {
	config    Config
	log       *logger.Logger
	newClient func(*paho.ClientOptions) Client

	mu     sync.RWMutex
	client Client
}

// New creates a new MQTT publisher
func New(config Config, log *logger.Logger) *Publisher {
	if log == nil {
		log = logger.New(logger.Config{Level: "info", Format: "text"})
	}

	return &Publisher{
		config: config,
		log:    log.WithComponent("mqtt"),
		newClient: func(opts *paho.ClientOptions) Client {
			return paho.NewClient(opts)
		},
	}
}

// Start connects to the broker. The client reconnects on its own after a
// lost connection.
func (p *Publisher) Start(ctx context.Context) error {
	if !p.config.Enabled {
		p.log.Info("MQTT publisher disabled")
		return nil
	}

	p.log.Info("Starting MQTT publisher",
		logger.String("broker", p.config.Broker),
		logger.String("client_id", p.config.ClientID))

	client := p.newClient(p.options())
	token := client.Connect()
	select {
	case <-token.Done():
	case <-time.After(connectTimeout):
		return fmt.Errorf("timed out connecting to MQTT broker %s", p.config.Broker)
	case <-ctx.Done():
		return ctx.Err()
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("failed to connect to MQTT broker: %w", err)
	}

	p.mu.Lock()
	p.client = client
	p.mu.Unlock()
	return nil
}

func (p *Publisher) options() *paho.ClientOptions {
	opts := paho.NewClientOptions()
	opts.AddBroker(p.config.Broker)
	opts.SetClientID(p.config.ClientID)
	if p.config.Username != "" {
		opts.SetUsername(p.config.Username)
	}
	if p.config.Password != "" {
		opts.SetPassword(p.config.Password)
	}

	opts.SetAutoReconnect(true)
	opts.SetConnectRetryInterval(10 * time.Second)
	opts.SetKeepAlive(60 * time.Second)
	opts.SetPingTimeout(10 * time.Second)

	opts.SetOnConnectHandler(func(paho.Client) {
		p.log.Info("Connected to broker")
	})
	opts.SetConnectionLostHandler(func(_ paho.Client, err error) {
		p.log.Warn("Connection lost", logger.Error(err))
	})
	opts.SetReconnectingHandler(func(paho.Client, *paho.ClientOptions) {
		p.log.Info("Attempting to reconnect")
	})
	return opts
}

// Stop disconnects from the broker
func (p *Publisher) Stop() {
	p.mu.Lock()
	client := p.client
	p.client = nil
	p.mu.Unlock()

	if client == nil {
		return
	}
	p.log.Info("Stopping MQTT publisher")
	if client.IsConnected() {
		client.Disconnect(250)
	}
}

// Publish sends one processor event
func (p *Publisher) Publish(ev p25.Event) error {
	if !p.config.Enabled {
		return nil
	}

	p.mu.RLock()
	client := p.client
	p.mu.RUnlock()
	if client == nil {
		return ErrNotConnected
	}

	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("failed to serialize event: %w", err)
	}

	topic := p.Topic(ev.Channel, ev.Message.DUID())
	token := client.Publish(topic, p.config.QoS, p.config.Retained, payload)
	if !token.WaitTimeout(publishTimeout) {
		return fmt.Errorf("timed out publishing to %s", topic)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("failed to publish to %s: %w", topic, err)
	}

	p.log.Debug("Published event",
		logger.String("topic", topic),
		logger.Int("payload_size", len(payload)))
	return nil
}

// Topic formats the topic of a channel's data unit
func (p *Publisher) Topic(channel string, duid p25.DataUnitID) string {
	return p.formatTopic(topicLevel(channel) + "/" + strings.ToLower(duid.String()))
}

// formatTopic formats a topic with the configured prefix
func (p *Publisher) formatTopic(suffix string) string {
	prefix := strings.TrimSuffix(p.config.TopicPrefix, "/")
	if prefix == "" {
		return suffix
	}
	return fmt.Sprintf("%s/%s", prefix, suffix)
}

// topicLevel keeps a channel name inside one topic level
func topicLevel(s string) string {
	if s == "" {
		return "_"
	}
	return strings.Map(func(r rune) rune {
		switch r {
		case '/', '+', '#':
			return '_'
		}
		return r
	}, s)
}
