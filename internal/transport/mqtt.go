package transport

import (
	"context"
	"fmt"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"go.viam.com/rdk/logging"

	pbal "github.com/RobotResearchRepos/mcubelab-pbal"
	"github.com/RobotResearchRepos/mcubelab-pbal/internal/config"
)

const (
	connectTimeout    = 5 * time.Second
	publishTimeout    = 2 * time.Second
	disconnectGraceMs = 250

	// maxDisconnected is how long the live transport tolerates a lost
	// broker connection before declaring shutdown. Connectivity failure
	// is a boundary condition, not something the loop recovers from.
	maxDisconnected = 30 * time.Second
)

// MQTT is the live transport: one subscription per input topic, latest
// payload retained per topic, a rate ticker as the loop's clock.
type MQTT struct {
	logger logging.Logger
	cfg    config.MQTTConfig
	period time.Duration

	client mqtt.Client
	ticker *time.Ticker

	mu            sync.Mutex
	state         topicState
	connected     bool
	lastConnected time.Time
}

// NewMQTT connects to the broker and subscribes the input topic set.
func NewMQTT(logger logging.Logger, cfg config.MQTTConfig, rateHz float64) (*MQTT, error) {
	m := &MQTT{
		logger: logger,
		cfg:    cfg,
		period: time.Duration(float64(time.Second) / rateHz),
	}

	opts := mqtt.NewClientOptions()
	opts.AddBroker(cfg.Broker)
	opts.SetClientID("pbal-contact-estimator")
	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
		opts.SetPassword(cfg.Password)
	}
	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)
	opts.SetConnectRetryInterval(2 * time.Second)

	opts.OnConnect = func(c mqtt.Client) {
		m.mu.Lock()
		m.connected = true
		m.lastConnected = time.Now()
		m.mu.Unlock()
		m.logger.Infof("Connected to broker %s", cfg.Broker)
	}
	opts.OnConnectionLost = func(c mqtt.Client, err error) {
		m.mu.Lock()
		m.connected = false
		m.lastConnected = time.Now()
		m.mu.Unlock()
		m.logger.Warnf("Broker connection lost, auto-reconnecting: %v", err)
	}

	m.client = mqtt.NewClient(opts)

	token := m.client.Connect()
	if !token.WaitTimeout(connectTimeout) {
		return nil, fmt.Errorf("broker connect timeout (%s)", cfg.Broker)
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("broker connect: %w", err)
	}

	if err := m.subscribeAll(); err != nil {
		m.client.Disconnect(disconnectGraceMs)
		return nil, err
	}

	m.ticker = time.NewTicker(m.period)
	return m, nil
}

func (m *MQTT) subscribeAll() error {
	t := m.cfg.Topics
	subs := map[string]topicKind{
		t.Pose:           topicPose,
		t.WorldWrench:    topicWorldWrench,
		t.EEWrench:       topicEEWrench,
		t.TorqueBoundary: topicTorqueBoundary,
		t.SlidingState:   topicSliding,
		t.Friction:       topicFriction,
		t.Vision:         topicVision,
	}

	for topic, kind := range subs {
		token := m.client.Subscribe(topic, 0, func(_ mqtt.Client, msg mqtt.Message) {
			m.mu.Lock()
			err := m.state.apply(kind, msg.Payload())
			m.mu.Unlock()
			if err != nil {
				m.logger.Warnf("Dropping message on %s: %v", msg.Topic(), err)
			}
		})
		if !token.WaitTimeout(connectTimeout) {
			return fmt.Errorf("subscribe timeout on %s", topic)
		}
		if err := token.Error(); err != nil {
			return fmt.Errorf("subscribe %s: %w", topic, err)
		}
	}
	return nil
}

// Step waits for the next control tick and returns the latest topic data.
func (m *MQTT) Step(ctx context.Context) (*pbal.CycleInput, error) {
	select {
	case <-ctx.Done():
		return nil, pbal.ErrShutdown
	case <-m.ticker.C:
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.connected && time.Since(m.lastConnected) > maxDisconnected {
		return nil, pbal.ErrShutdown
	}

	in := &pbal.CycleInput{Now: time.Now()}
	m.state.snapshot(in)
	return in, nil
}

// PublishPivotFrame publishes the pivot point triple.
func (m *MQTT) PublishPivotFrame(p [3]float64) error {
	payload, err := encodePivotFrame(p)
	if err != nil {
		return err
	}
	return m.publish(m.cfg.Topics.PivotFrame, payload)
}

// PublishContactEstimate publishes the annotated polygon snapshot.
func (m *MQTT) PublishContactEstimate(ce pbal.ContactEstimate) error {
	payload, err := encodeContactEstimate(ce)
	if err != nil {
		return err
	}
	return m.publish(m.cfg.Topics.ContactEstimate, payload)
}

func (m *MQTT) publish(topic string, payload []byte) error {
	token := m.client.Publish(topic, 0, false, payload)
	if !token.WaitTimeout(publishTimeout) {
		return fmt.Errorf("publish timeout on %s", topic)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("publish %s: %w", topic, err)
	}
	return nil
}

// Close stops the tick clock and disconnects from the broker.
func (m *MQTT) Close() {
	if m.ticker != nil {
		m.ticker.Stop()
	}
	if m.client != nil && m.client.IsConnected() {
		m.client.Disconnect(disconnectGraceMs)
	}
}
