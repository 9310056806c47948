package bus

import (
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/hushlabs/speakd/internal/config"
	"github.com/hushlabs/speakd/internal/protocol"
	"github.com/nats-io/nats.go"
)

// Client wraps a NATS connection with helpers for publishing synthesis
// events. A nil Client is safe to use; every method becomes a no-op.
type Client struct {
	conn *nats.Conn
	log  *slog.Logger
}

func Connect(cfg config.BusConfig, log *slog.Logger) (*Client, error) {
	if len(cfg.Servers) == 0 {
		return nil, errors.New("no NATS servers configured")
	}

	options := []nats.Option{
		nats.Name("speakd"),
		nats.Timeout(time.Duration(cfg.ConnectTimeout) * time.Millisecond),
	}

	if cfg.Username != "" || cfg.Password != "" {
		options = append(options, nats.UserInfo(cfg.Username, cfg.Password))
	}
	if cfg.Token != "" {
		options = append(options, nats.Token(cfg.Token))
	}
	if cfg.TLSInsecure {
		options = append(options, nats.Secure(&tls.Config{InsecureSkipVerify: true}))
	}

	url := strings.Join(cfg.Servers, ",")
	conn, err := nats.Connect(url, options...)
	if err != nil {
		return nil, fmt.Errorf("connect to nats: %w", err)
	}

	log.Info("connected to NATS", slog.String("servers", url))

	return &Client{conn: conn, log: log}, nil
}

func (c *Client) Close() {
	if c == nil || c.conn == nil {
		return
	}
	c.log.Info("closing NATS connection")
	c.conn.Drain()
	c.conn.Close()
}

func (c *Client) Healthy() bool {
	return c != nil && c.conn != nil && c.conn.Status() == nats.CONNECTED
}

// PublishSynthesis emits a synthesis-completed event. Failures are logged,
// never propagated: the bus is a side channel and must not fail a request.
func (c *Client) PublishSynthesis(evt protocol.SynthesisEvent) {
	if c == nil || c.conn == nil {
		return
	}
	data, err := json.Marshal(evt)
	if err != nil {
		c.log.Warn("failed to marshal synthesis event", slog.String("error", err.Error()))
		return
	}
	if err := c.conn.Publish(protocol.SubjectSynthesisCompleted, data); err != nil {
		c.log.Warn("failed to publish synthesis event", slog.String("error", err.Error()))
	}
}
