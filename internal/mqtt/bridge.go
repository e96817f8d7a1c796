package mqtt

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"sync/atomic"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"go.uber.org/zap"

	"p1dlms/pkg/decoder"
)

const publishTimeout = time.Second

// Bridge publishes readings to the broker: one retained state topic per
// quantity plus the whole reading as JSON.
type Bridge struct {
	client    *MQTTClient
	discovery bool
	logger    *zap.Logger
	connects  atomic.Int32
}

func NewBridge(client *MQTTClient, discovery bool, logger *zap.Logger) *Bridge {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Bridge{client: client, discovery: discovery, logger: logger}
}

func (b *Bridge) Name() string {
	return "mqtt"
}

// Start connects and announces the bridge.
func (b *Bridge) Start() error {
	if err := b.client.Connect(5 * time.Second); err != nil {
		return err
	}
	return b.Announce()
}

// Announce marks the bridge online and, when enabled, publishes the Home
// Assistant discovery documents. It is also the reconnect handler.
func (b *Bridge) Announce() error {
	if err := b.client.Publish(b.client.BridgeStateTopic(), MQTT_PAYLOAD_ONLINE, 0, true, publishTimeout); err != nil {
		return err
	}
	if !b.discovery {
		return nil
	}
	var errs []error
	for _, msg := range DiscoveryMessages(b.client) {
		payload, err := json.Marshal(msg.Config)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if err := b.client.Publish(msg.Topic, payload, 0, true, publishTimeout); err != nil {
			errs = append(errs, err)
		}
	}
	if len(errs) == 0 {
		b.logger.Info("published home assistant discovery", zap.String("topic", b.client.DiscoveryTopic()))
	}
	return errors.Join(errs...)
}

// HandleConnect is the paho OnConnect hook. The first connection is
// announced by Start; later ones are reconnects and re-announce.
func (b *Bridge) HandleConnect(mqtt.Client) {
	if b.connects.Add(1) == 1 {
		return
	}
	go func() {
		if err := b.Announce(); err != nil {
			b.logger.Warn("announce after reconnect", zap.Error(err))
			return
		}
		b.logger.Info("mqtt reconnected")
	}()
}

// Stop marks the bridge offline and disconnects.
func (b *Bridge) Stop() {
	if b.client.IsConnected() {
		if err := b.client.Publish(b.client.BridgeStateTopic(), MQTT_PAYLOAD_OFFLINE, 0, true, publishTimeout); err != nil {
			b.logger.Warn("publish offline state", zap.Error(err))
		}
	}
	b.client.Disconnect(500 * time.Millisecond)
}

func (b *Bridge) OnReading(_ context.Context, r decoder.Reading) error {
	if !b.client.IsConnected() {
		return errors.New("MQTT not connected")
	}
	var errs []error
	for q, v := range r.Values() {
		payload := strconv.FormatFloat(v, 'f', -1, 64)
		if err := b.client.Publish(b.client.SensorStateTopic(q.Key()), payload, 0, true, publishTimeout); err != nil {
			errs = append(errs, err)
		}
	}
	if r.Timestamp != nil {
		topic := b.client.SensorStateTopic(decoder.QuantityTimestamp.Key())
		if err := b.client.Publish(topic, *r.Timestamp, 0, true, publishTimeout); err != nil {
			errs = append(errs, err)
		}
	}
	payload, err := json.Marshal(r)
	if err != nil {
		return err
	}
	if err := b.client.Publish(b.client.ReadingTopic(), payload, 0, false, publishTimeout); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}
