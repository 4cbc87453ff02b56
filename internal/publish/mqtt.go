// Package publish forwards published readings to an MQTT broker so other
// systems can follow the parking space. It only sends; nothing received over
// MQTT changes the appliance.
package publish

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/banshee-data/parking.assist/internal/monitoring"
	"github.com/banshee-data/parking.assist/internal/reading"
)

// DefaultTimeout bounds connect and each publish.
const DefaultTimeout = 5 * time.Second

var ErrTimeout = errors.New("mqtt operation timed out")

// Client is the part of mqtt.Client the publisher uses.
type Client interface {
	Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token
	Disconnect(quiesce uint)
}

// Dial connects to broker, e.g. "tcp://broker.local:1883".
func Dial(broker, clientID string) (mqtt.Client, error) {
	opts := mqtt.NewClientOptions().
		AddBroker(broker).
		SetClientID(clientID).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectTimeout(DefaultTimeout)
	opts.SetConnectionLostHandler(func(_ mqtt.Client, err error) {
		monitoring.Warnf("mqtt connection lost: %v", err)
	})

	c := mqtt.NewClient(opts)
	token := c.Connect()
	if !token.WaitTimeout(DefaultTimeout) {
		// ConnectRetry keeps trying in the background
		monitoring.Warnf("mqtt broker %s not reachable yet, retrying", broker)
		return c, nil
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("connect to %s: %w", broker, err)
	}
	return c, nil
}

// Publisher sends readings as retained JSON messages on one topic.
type Publisher struct {
	client  Client
	topic   string
	Timeout time.Duration
}

func New(client Client, topic string) *Publisher {
	return &Publisher{client: client, topic: topic, Timeout: DefaultTimeout}
}

// Publish sends r. Readings are retained so a new subscriber gets the
// latest one straight away.
func (p *Publisher) Publish(r reading.Reading) error {
	payload, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("marshal reading: %w", err)
	}
	token := p.client.Publish(p.topic, 0, true, payload)
	if !token.WaitTimeout(p.Timeout) {
		return ErrTimeout
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("publish to %s: %w", p.topic, err)
	}
	return nil
}

// Run forwards every reading published to store until ctx is done, then
// disconnects.
func (p *Publisher) Run(ctx context.Context, store *reading.Store) {
	id, c := store.Subscribe()
	defer func() {
		store.Unsubscribe(id)
		p.client.Disconnect(250)
	}()

	monitoring.Infof("publishing readings to mqtt topic %s", p.topic)
	for {
		select {
		case r, ok := <-c:
			if !ok {
				return
			}
			if err := p.Publish(r); err != nil {
				monitoring.Warnf("mqtt publish failed: %v", err)
			}
		case <-ctx.Done():
			return
		}
	}
}
