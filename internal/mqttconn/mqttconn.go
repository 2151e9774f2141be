// Package mqttconn dials an MQTT v5 broker and returns a connected paho client.
package mqttconn

import (
	"context"
	"fmt"
	"net"
	"net/url"
	"strings"

	"github.com/eclipse/paho.golang/paho"
)

// Config describes one broker connection.
type Config struct {
	Broker    string
	ClientID  string
	Username  string
	Password  string
	KeepAlive uint16
}

// Handlers are optional callbacks wired into the paho client.
type Handlers struct {
	OnPublish          func(paho.PublishReceived) (bool, error)
	OnClientError      func(error)
	OnServerDisconnect func(*paho.Disconnect)
}

// Dial opens a TCP connection to cfg.Broker and performs the MQTT CONNECT.
func Dial(ctx context.Context, cfg Config, h Handlers) (*paho.Client, error) {
	addr, err := brokerAddress(cfg.Broker)
	if err != nil {
		return nil, err
	}

	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", addr, err)
	}

	pc := paho.ClientConfig{
		ClientID:           cfg.ClientID,
		Conn:               conn,
		OnClientError:      h.OnClientError,
		OnServerDisconnect: h.OnServerDisconnect,
	}
	if h.OnPublish != nil {
		pc.OnPublishReceived = []func(paho.PublishReceived) (bool, error){h.OnPublish}
	}
	client := paho.NewClient(pc)

	keepAlive := cfg.KeepAlive
	if keepAlive == 0 {
		keepAlive = 30
	}
	cp := &paho.Connect{
		ClientID:   cfg.ClientID,
		KeepAlive:  keepAlive,
		CleanStart: true,
	}
	if cfg.Username != "" {
		cp.Username = cfg.Username
		cp.UsernameFlag = true
	}
	if cfg.Password != "" {
		cp.Password = []byte(cfg.Password)
		cp.PasswordFlag = true
	}

	ack, err := client.Connect(ctx, cp)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("mqtt connect: %w", err)
	}
	if ack.ReasonCode != 0 {
		conn.Close()
		return nil, fmt.Errorf("mqtt connect refused: reason code %d", ack.ReasonCode)
	}
	return client, nil
}

// brokerAddress accepts host:port or a tcp:// / mqtt:// URL.
func brokerAddress(broker string) (string, error) {
	if broker == "" {
		return "", fmt.Errorf("mqtt broker address is empty")
	}
	if !strings.Contains(broker, "://") {
		return broker, nil
	}
	u, err := url.Parse(broker)
	if err != nil {
		return "", fmt.Errorf("parse broker url: %w", err)
	}
	switch u.Scheme {
	case "tcp", "mqtt":
	default:
		return "", fmt.Errorf("unsupported broker scheme %q", u.Scheme)
	}
	host := u.Host
	if u.Port() == "" {
		host = net.JoinHostPort(u.Hostname(), "1883")
	}
	return host, nil
}
