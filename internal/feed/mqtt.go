package feed

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/eclipse/paho.golang/paho"

	"github.com/kubo-market/airwatch/internal/domain"
	"github.com/kubo-market/airwatch/internal/mqttconn"
)

// MQTT is a feed over an MQTT subscription. Each message payload is one
// JSON sample; messages are delivered in broker order.
type MQTT struct {
	client  *paho.Client
	topic   string
	decoder *Decoder
	log     *slog.Logger

	msgs chan []byte
	errs chan error
	done chan struct{}
	once sync.Once
}

// NewMQTT connects to the broker and subscribes to topic at QoS 1.
func NewMQTT(ctx context.Context, cfg mqttconn.Config, topic string, decoder *Decoder, log *slog.Logger) (*MQTT, error) {
	if log == nil {
		log = slog.Default()
	}
	m := &MQTT{
		topic:   topic,
		decoder: decoder,
		log:     log,
		msgs:    make(chan []byte, 64),
		errs:    make(chan error, 1),
		done:    make(chan struct{}),
	}

	client, err := mqttconn.Dial(ctx, cfg, mqttconn.Handlers{
		OnPublish: m.onPublish,
		OnClientError: func(err error) {
			m.fail(fmt.Errorf("mqtt client: %w", err))
		},
		OnServerDisconnect: func(d *paho.Disconnect) {
			m.fail(fmt.Errorf("mqtt server disconnect: reason code %d", d.ReasonCode))
		},
	})
	if err != nil {
		return nil, err
	}
	m.client = client

	if _, err := client.Subscribe(ctx, &paho.Subscribe{
		Subscriptions: []paho.SubscribeOptions{{Topic: topic, QoS: 1}},
	}); err != nil {
		_ = client.Disconnect(&paho.Disconnect{ReasonCode: 0})
		return nil, fmt.Errorf("subscribe %s: %w", topic, err)
	}
	log.Info("subscribed to sample topic", "topic", topic)
	return m, nil
}

func (m *MQTT) onPublish(pr paho.PublishReceived) (bool, error) {
	payload := append([]byte(nil), pr.Packet.Payload...)
	select {
	case m.msgs <- payload:
	case <-m.done:
	}
	return true, nil
}

func (m *MQTT) fail(err error) {
	select {
	case m.errs <- err:
	default:
	}
}

// Next implements Feed.
func (m *MQTT) Next(ctx context.Context) (domain.Sample, error) {
	for {
		select {
		case <-m.done:
			return domain.Sample{}, domain.ErrFeedClosed
		default:
		}

		select {
		case payload := <-m.msgs:
			if s, ok := m.decoder.Decode(payload); ok {
				return s, nil
			}
		case err := <-m.errs:
			return domain.Sample{}, err
		case <-m.done:
			return domain.Sample{}, domain.ErrFeedClosed
		case <-ctx.Done():
			return domain.Sample{}, ctx.Err()
		}
	}
}

// Close implements Feed.
func (m *MQTT) Close() error {
	var err error
	m.once.Do(func() {
		close(m.done)
		err = m.client.Disconnect(&paho.Disconnect{ReasonCode: 0})
	})
	return err
}
