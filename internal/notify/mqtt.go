package notify

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/eclipse/paho.golang/paho"

	"github.com/kubo-market/airwatch/internal/domain"
)

// Publisher is the part of a paho client the MQTT sink needs.
type Publisher interface {
	Publish(ctx context.Context, p *paho.Publish) (*paho.PublishResponse, error)
}

// MQTT publishes each alert as JSON to topic/<rule>.
type MQTT struct {
	client Publisher
	topic  string
}

// NewMQTT creates an MQTT sink publishing under topic.
func NewMQTT(client Publisher, topic string) *MQTT {
	return &MQTT{client: client, topic: topic}
}

// Notify implements Sink.
func (m *MQTT) Notify(ctx context.Context, alert domain.Alert) error {
	payload, err := json.Marshal(alert)
	if err != nil {
		return fmt.Errorf("marshal alert: %w", err)
	}
	_, err = m.client.Publish(ctx, &paho.Publish{
		Topic:   m.topic + "/" + alert.Identity.Rule(),
		QoS:     1,
		Payload: payload,
		Properties: &paho.PublishProperties{
			ContentType: "application/json",
		},
	})
	if err != nil {
		return fmt.Errorf("publish alert: %w", err)
	}
	return nil
}
