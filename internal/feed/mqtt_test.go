package feed

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/eclipse/paho.golang/paho"
	mochi "github.com/mochi-mqtt/server/v2"
	"github.com/mochi-mqtt/server/v2/hooks/auth"
	"github.com/mochi-mqtt/server/v2/listeners"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kubo-market/airwatch/internal/domain"
	"github.com/kubo-market/airwatch/internal/mqttconn"
)

const mochiFeedPort = 18831

func startBroker(t *testing.T, port int) string {
	t.Helper()
	addr := fmt.Sprintf("127.0.0.1:%d", port)

	broker := mochi.New(nil)
	require.NoError(t, broker.AddHook(&auth.AllowHook{}, nil))
	require.NoError(t, broker.AddListener(listeners.NewTCP(listeners.Config{
		Type:    "tcp",
		Address: addr,
	})))
	require.NoError(t, broker.Serve())
	t.Cleanup(func() { broker.Close() })
	return addr
}

func TestMQTT_ReceivesSamples(t *testing.T) {
	addr := startBroker(t, mochiFeedPort)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	const topic = "air/samples"
	f, err := NewMQTT(ctx, mqttconn.Config{Broker: addr, ClientID: "feed-test"}, topic,
		NewDecoder("", domain.DefaultSignals, quietLogger()), quietLogger())
	require.NoError(t, err)
	defer f.Close()

	pub, err := mqttconn.Dial(ctx, mqttconn.Config{Broker: addr, ClientID: "feed-test-pub"}, mqttconn.Handlers{})
	require.NoError(t, err)
	defer pub.Disconnect(&paho.Disconnect{ReasonCode: 0})

	payloads := []string{
		`{"at":"2021-05-15T14:34:00Z","VOC-TGS":474,"PM25":1.9,"PM10":2.7}`,
		`{"at":"2021-05-15T14:34:01Z","VOC-TGS":474}`,
		`{"at":"2021-05-15T14:34:02Z","VOC-TGS":473,"PM25":2.0,"PM10":2.9}`,
	}
	for _, p := range payloads {
		_, err := pub.Publish(ctx, &paho.Publish{Topic: topic, QoS: 1, Payload: []byte(p)})
		require.NoError(t, err)
	}

	s, err := f.Next(ctx)
	require.NoError(t, err)
	v, _ := s.Value("PM10")
	assert.Equal(t, 2.7, v)

	s, err = f.Next(ctx)
	require.NoError(t, err)
	v, _ = s.Value("PM10")
	assert.Equal(t, 2.9, v)

	require.NoError(t, f.Close())
	_, err = f.Next(ctx)
	assert.ErrorIs(t, err, domain.ErrFeedClosed)
}
