package mqtt

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"psychro-dash/internal/config"
	"psychro-dash/internal/modules/measurements/types"
)

var ErrNotConnected = errors.New("mqtt client not connected")

// ReadingMessage is the payload remote psychrometers publish.
type ReadingMessage struct {
	SensorID  string    `json:"sensor_id"`
	Timestamp time.Time `json:"timestamp"`
	DryBulbC  *float64  `json:"dry_bulb_c"`
	WetBulbC  *float64  `json:"wet_bulb_c"`
}

type MessageHandler func(ctx context.Context, msg ReadingMessage) error

// MQTTSubscriber interface for attaching message handlers
type MQTTSubscriber interface {
	SetMessageHandler(handler MessageHandler)
}

// Subscriber consumes sensor readings from the broker and publishes the
// resulting states back to it. It is a measurements sink.
type Subscriber struct {
	client    mqtt.Client
	cfg       config.MQTTConfig
	logger    *slog.Logger
	mu        sync.RWMutex
	connected bool

	stopCh   chan struct{}
	stopOnce sync.Once

	handlerMu sync.RWMutex
	handler   MessageHandler
}

// SetMessageHandler sets the handler called for each valid reading message.
// Set it before Connect so retained and queued messages are not dropped.
func (s *Subscriber) SetMessageHandler(handler MessageHandler) {
	s.handlerMu.Lock()
	s.handler = handler
	s.handlerMu.Unlock()
}

func NewSubscriber(cfg config.MQTTConfig, logger *slog.Logger) *Subscriber {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Subscriber{
		cfg:    cfg,
		logger: logger,
		stopCh: make(chan struct{}),
	}

	opts := mqtt.NewClientOptions()
	opts.AddBroker(fmt.Sprintf("tcp://%s:%d", cfg.Broker, cfg.Port))
	opts.SetClientID(cfg.ClientID)
	opts.SetCleanSession(true)
	// Handlers publish the computed state and wait for the ack.
	opts.SetOrderMatters(false)

	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)
	opts.SetConnectRetryInterval(5 * time.Second)
	opts.SetMaxReconnectInterval(60 * time.Second)

	opts.SetKeepAlive(30 * time.Second)
	opts.SetPingTimeout(10 * time.Second)

	// Resubscribe on every (re)connect; clean sessions forget subscriptions.
	opts.SetOnConnectHandler(func(_ mqtt.Client) {
		s.setConnected(true)
		logger.Info("mqtt connected", "broker", cfg.Broker, "port", cfg.Port)
		if err := s.subscribe(); err != nil {
			logger.Error("mqtt subscribe failed", "topic", cfg.Topic, "error", err)
		}
	})

	opts.SetConnectionLostHandler(func(_ mqtt.Client, err error) {
		s.setConnected(false)
		logger.Warn("mqtt connection lost", "error", err)
	})

	s.client = mqtt.NewClient(opts)
	return s
}

// Connect establishes the connection to the broker. Subscription happens in
// the on-connect callback.
func (s *Subscriber) Connect(ctx context.Context) error {
	select {
	case <-s.stopCh:
		return fmt.Errorf("subscriber stopped")
	default:
	}

	if s.IsConnected() {
		return nil
	}

	token := s.client.Connect()

	const poll = 200 * time.Millisecond
	for {
		if token.WaitTimeout(poll) {
			if err := token.Error(); err != nil {
				return fmt.Errorf("mqtt connect: %w", err)
			}
			return nil
		}

		select {
		case <-ctx.Done():
			s.client.Disconnect(0)
			return ctx.Err()
		case <-s.stopCh:
			s.client.Disconnect(0)
			return fmt.Errorf("subscriber stopped")
		default:
		}
	}
}

func (s *Subscriber) subscribe() error {
	const qos = byte(1)
	token := s.client.Subscribe(s.cfg.Topic, qos, func(_ mqtt.Client, msg mqtt.Message) {
		s.handleMessage(msg.Topic(), msg.Payload())
	})
	if !token.WaitTimeout(5 * time.Second) {
		return fmt.Errorf("subscribe timeout for topic %s", s.cfg.Topic)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("subscribe to %s: %w", s.cfg.Topic, err)
	}
	s.logger.Info("subscribed to mqtt topic", "topic", s.cfg.Topic, "qos", qos)
	return nil
}

func (s *Subscriber) handleMessage(topic string, payload []byte) {
	s.logger.Debug("received mqtt message", "topic", topic, "size", len(payload))

	msg, err := decodeReading(topic, payload)
	if err != nil {
		s.logger.Warn("invalid reading message",
			"topic", topic,
			"error", err,
			"payload", string(payload),
		)
		return
	}

	s.handlerMu.RLock()
	handler := s.handler
	s.handlerMu.RUnlock()
	if handler == nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := handler(ctx, msg); err != nil {
		s.logger.Warn("reading not accepted",
			"topic", topic,
			"sensor_id", msg.SensorID,
			"error", err,
		)
	}
}

// decodeReading parses and validates a reading payload. A missing sensor_id
// falls back to the wildcard segment of topics shaped like psychro/<id>/reading.
func decodeReading(topic string, payload []byte) (ReadingMessage, error) {
	var msg ReadingMessage
	if err := json.Unmarshal(payload, &msg); err != nil {
		return ReadingMessage{}, fmt.Errorf("parse reading: %w", err)
	}
	if msg.SensorID == "" {
		if parts := strings.Split(topic, "/"); len(parts) == 3 {
			msg.SensorID = parts[1]
		}
	}
	if msg.SensorID == "" {
		return ReadingMessage{}, errors.New("sensor_id is required")
	}
	if msg.DryBulbC == nil || msg.WetBulbC == nil {
		return ReadingMessage{}, errors.New("dry_bulb_c and wet_bulb_c are required")
	}
	return msg, nil
}

// StateTopic is where the state computed for sensorID is published.
func StateTopic(sensorID string) string {
	id := strings.NewReplacer("/", "_", "+", "_", "#", "_").Replace(strings.Trim(sensorID, "/"))
	if id == "" {
		id = "unknown"
	}
	return "psychro/" + id + "/state"
}

func (s *Subscriber) Name() string { return "mqtt" }

// Deliver publishes m as a retained JSON message on its state topic.
func (s *Subscriber) Deliver(ctx context.Context, m types.Measurement) error {
	if !s.IsConnected() {
		return ErrNotConnected
	}
	body, err := json.Marshal(m)
	if err != nil {
		return fmt.Errorf("encode state: %w", err)
	}
	topic := StateTopic(m.Source.ID)
	token := s.client.Publish(topic, 1, true, body)
	select {
	case <-token.Done():
		if err := token.Error(); err != nil {
			return fmt.Errorf("publish %s: %w", topic, err)
		}
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// IsConnected returns whether the client is connected.
func (s *Subscriber) IsConnected() bool {
	s.mu.RLock()
	connected := s.connected
	s.mu.RUnlock()
	return connected && s.client.IsConnected()
}

// Disconnect stops the subscriber and closes the MQTT connection.
// Idempotent and safe to call multiple times.
func (s *Subscriber) Disconnect() {
	s.stopOnce.Do(func() { close(s.stopCh) })

	if s.client != nil && s.IsConnected() {
		token := s.client.Unsubscribe(s.cfg.Topic)
		token.WaitTimeout(2 * time.Second)
	}

	// Disconnect without holding s.mu to avoid lock contention/deadlocks.
	if s.client != nil {
		s.client.Disconnect(250)
	}

	s.setConnected(false)
	s.logger.Info("mqtt subscriber disconnected")
}

func (s *Subscriber) setConnected(v bool) {
	s.mu.Lock()
	s.connected = v
	s.mu.Unlock()
}
