// Package mqtt publishes controller state to an MQTT broker and accepts
// writes on per-sensor command topics.
package mqtt

import (
	"context"
	"fmt"
	"sync"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/muurk/cyberq/internal/config"
	"github.com/muurk/cyberq/internal/cyberq"
	"github.com/muurk/cyberq/internal/logging"
	"github.com/muurk/cyberq/internal/poller"
	"go.uber.org/zap"
)

const (
	operationTimeout  = 10 * time.Second
	commandTimeout    = cyberq.RefreshTimeout
	disconnectQuiesce = 250 // milliseconds
)

// Poller is the state source and write path the bridge fronts.
type Poller interface {
	State() poller.State
	Set(ctx context.Context, key string, value any) error
	Subscribe(fn func(poller.State)) (unsubscribe func())
}

// OptsFromSettings builds paho options with an "offline" last will on the
// availability topic.
func OptsFromSettings(cfg config.MQTTSettings, topics Topics) *paho.ClientOptions {
	opts := paho.NewClientOptions()
	opts.AddBroker(fmt.Sprintf("tcp://%s:%d", cfg.Host, cfg.Port))
	opts.SetClientID("cyberq_" + topics.device)
	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
		opts.SetPassword(cfg.Password)
	}
	opts.SetAutoReconnect(true)
	opts.SetWill(topics.Availability(), PayloadOffline, 1, true)
	return opts
}

// Bridge mirrors poller states onto retained MQTT topics.
type Bridge struct {
	client paho.Client
	topics Topics
	poller Poller

	mu        sync.Mutex
	published map[string]string // last payload per state topic
	available *bool

	unsubscribe func()
}

// New creates a bridge around client. The client's OnConnect handler should
// call OnConnect so subscriptions and retained state survive reconnects;
// Connect wires that when the options come from OptsFromSettings.
func New(client paho.Client, topics Topics, p Poller) *Bridge {
	return &Bridge{
		client:    client,
		topics:    topics,
		poller:    p,
		published: make(map[string]string),
	}
}

// Connect creates a paho client from cfg and returns a connected bridge.
func Connect(cfg config.MQTTSettings, deviceID string, p Poller) (*Bridge, error) {
	topics := NewTopics(cfg.BaseTopic, deviceID)
	opts := OptsFromSettings(cfg, topics)

	var b *Bridge
	opts.SetOnConnectHandler(func(paho.Client) { b.OnConnect() })
	opts.SetConnectionLostHandler(func(_ paho.Client, err error) {
		logging.Warn("MQTT connection lost", zap.Error(err))
	})

	b = New(paho.NewClient(opts), topics, p)
	if err := b.Start(); err != nil {
		return nil, err
	}
	return b, nil
}

// Start connects the client and begins following the poller.
func (b *Bridge) Start() error {
	if !b.client.IsConnected() {
		if err := wait(b.client.Connect(), "connect"); err != nil {
			return err
		}
	}
	logging.Info("MQTT connected", zap.String("availability", b.topics.Availability()))
	b.unsubscribe = b.poller.Subscribe(b.HandleState)
	return nil
}

// OnConnect subscribes to command topics and republishes everything, since
// a reconnect may follow a broker restart that lost retained messages.
func (b *Bridge) OnConnect() {
	token := b.client.Subscribe(b.topics.CommandFilter(), 1, b.handleMessage)
	if err := wait(token, "subscribe"); err != nil {
		logging.Error("MQTT subscribe failed", zap.String("topic", b.topics.CommandFilter()), zap.Error(err))
	}

	b.mu.Lock()
	b.published = make(map[string]string)
	b.available = nil
	b.mu.Unlock()

	b.HandleState(b.poller.State())
}

// HandleState publishes availability and every value that changed since it
// was last published.
func (b *Bridge) HandleState(s poller.State) {
	b.mu.Lock()
	var availability string
	if b.available == nil || *b.available != s.Available {
		availability = PayloadOffline
		if s.Available {
			availability = PayloadOnline
		}
		avail := s.Available
		b.available = &avail
	}

	type message struct{ topic, payload string }
	var pending []message
	if s.Snapshot != nil {
		for _, v := range s.Snapshot.Values() {
			topic := b.topics.State(v.Name())
			payload := StatePayload(v)
			if prev, ok := b.published[topic]; ok && prev == payload {
				continue
			}
			b.published[topic] = payload
			pending = append(pending, message{topic, payload})
		}
	}
	b.mu.Unlock()

	if availability != "" {
		b.publish(b.topics.Availability(), availability)
	}
	for _, m := range pending {
		b.publish(m.topic, m.payload)
	}
}

func (b *Bridge) publish(topic, payload string) {
	logging.LogMQTTMessage("publish", topic, []byte(payload))
	token := b.client.Publish(topic, 1, true, payload)
	go func() {
		if err := wait(token, "publish"); err != nil {
			logging.Warn("MQTT publish failed", zap.String("topic", topic), zap.Error(err))
		}
	}()
}

func (b *Bridge) handleMessage(_ paho.Client, msg paho.Message) {
	logging.LogMQTTMessage("receive", msg.Topic(), msg.Payload())
	if err := b.HandleCommand(msg.Topic(), msg.Payload()); err != nil {
		logging.Warn("MQTT command rejected",
			zap.String("topic", msg.Topic()),
			zap.String("payload", string(msg.Payload())),
			zap.Error(err))
	}
}

// HandleCommand validates and applies one set-topic message.
func (b *Bridge) HandleCommand(topic string, payload []byte) error {
	a, err := b.topics.ParseCommand(topic, payload)
	if err != nil {
		return err
	}

	snapshot := b.poller.State().Snapshot
	if snapshot == nil {
		return cyberq.NewNotFoundError(a.Key)
	}
	current, err := snapshot.Get(a.Key)
	if err != nil {
		return err
	}
	d := current.Descriptor()
	value := cyberq.NormalizeInput(d, a.Value)
	if err := cyberq.ValidateInput(d, value); err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
	defer cancel()
	return b.poller.Set(ctx, current.Name(), value)
}

// Close marks the controller offline and disconnects.
func (b *Bridge) Close() {
	if b.unsubscribe != nil {
		b.unsubscribe()
	}
	if b.client.IsConnected() {
		if err := wait(b.client.Publish(b.topics.Availability(), 1, true, PayloadOffline), "publish"); err != nil {
			logging.Warn("MQTT offline publish failed", zap.Error(err))
		}
		b.client.Disconnect(disconnectQuiesce)
	}
	logging.Info("MQTT disconnected")
}

func wait(token paho.Token, op string) error {
	if !token.WaitTimeout(operationTimeout) {
		return fmt.Errorf("MQTT %s timed out", op)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("MQTT %s: %w", op, err)
	}
	return nil
}
