package events

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/nats-io/nats.go"

	"github.com/ramonehamilton/NMJL-Companion/internal/logging"
)

// LoggingObserver logs every event, with payloads when verbose.
type LoggingObserver struct {
	logger  *log.Logger
	verbose bool
}

// NewLoggingObserver creates a logging observer.
func NewLoggingObserver(logger *log.Logger, verbose bool) *LoggingObserver {
	return &LoggingObserver{logger: logging.Or(logger).With("component", "event-log"), verbose: verbose}
}

func (o *LoggingObserver) OnEvent(event Event) error {
	if o.verbose {
		o.logger.Debug("event", "type", event.Type, "data", event.Data)
	} else {
		o.logger.Debug("event", "type", event.Type)
	}
	return nil
}

func (o *LoggingObserver) Name() string { return "logging" }

func (o *LoggingObserver) ShouldHandle(string) bool { return true }

// FuncObserver adapts a function to Observer. An empty type list handles
// every event.
type FuncObserver struct {
	name  string
	types map[string]bool
	fn    func(Event) error
}

// NewFuncObserver creates an observer for the given event types.
func NewFuncObserver(name string, fn func(Event) error, types ...string) *FuncObserver {
	o := &FuncObserver{name: name, fn: fn, types: make(map[string]bool, len(types))}
	for _, t := range types {
		o.types[t] = true
	}
	return o
}

func (o *FuncObserver) OnEvent(event Event) error { return o.fn(event) }

func (o *FuncObserver) Name() string { return o.name }

func (o *FuncObserver) ShouldHandle(eventType string) bool {
	return len(o.types) == 0 || o.types[eventType]
}

// NATSConfig configures the NATS bridge.
type NATSConfig struct {
	URL           string
	Subject       string
	Enabled       bool
	MaxReconnects int
	ReconnectWait time.Duration
}

// DefaultNATSConfig returns a disabled bridge pointed at a local server.
func DefaultNATSConfig() NATSConfig {
	return NATSConfig{
		URL:           nats.DefaultURL,
		Subject:       "nmjl.events",
		MaxReconnects: 10,
		ReconnectWait: 2 * time.Second,
	}
}

// Publisher is the subset of *nats.Conn the bridge uses.
type Publisher interface {
	Publish(subject string, data []byte) error
}

// NATSPublisher publishes events as JSON on "<subject>.<event type>", with
// the colon in the type replaced by a dot.
type NATSPublisher struct {
	pub     Publisher
	conn    *nats.Conn
	subject string
	logger  *log.Logger
}

// ConnectNATS dials the server and returns a bridge that owns the connection.
func ConnectNATS(cfg NATSConfig, logger *log.Logger) (*NATSPublisher, error) {
	logger = logging.Or(logger).With("component", "nats")
	conn, err := nats.Connect(cfg.URL,
		nats.Name("nmjl-companion"),
		nats.MaxReconnects(cfg.MaxReconnects),
		nats.ReconnectWait(cfg.ReconnectWait),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			logger.Warn("disconnected from NATS", "err", err)
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			logger.Info("reconnected to NATS", "url", nc.ConnectedUrl())
		}),
		nats.Timeout(10*time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("connect to NATS at %s: %w", cfg.URL, err)
	}
	p := NewNATSPublisher(conn, cfg.Subject, logger)
	p.conn = conn
	return p, nil
}

// NewNATSPublisher wraps an existing publisher.
func NewNATSPublisher(pub Publisher, subject string, logger *log.Logger) *NATSPublisher {
	return &NATSPublisher{pub: pub, subject: subject, logger: logging.Or(logger)}
}

// Subject returns the subject an event type is published on.
func (p *NATSPublisher) Subject(eventType string) string {
	return p.subject + "." + strings.ReplaceAll(eventType, ":", ".")
}

func (p *NATSPublisher) OnEvent(event Event) error {
	data, err := json.Marshal(struct {
		Type string `json:"type"`
		Data any    `json:"data"`
	}{event.Type, event.Data})
	if err != nil {
		return fmt.Errorf("marshal %s: %w", event.Type, err)
	}
	if err := p.pub.Publish(p.Subject(event.Type), data); err != nil {
		return fmt.Errorf("publish %s: %w", event.Type, err)
	}
	return nil
}

func (p *NATSPublisher) Name() string { return "nats" }

// ShouldHandle skips cancellations; they are only interesting to the live session.
func (p *NATSPublisher) ShouldHandle(eventType string) bool {
	return eventType != TypeScanCancelled
}

// Close drains the connection when the publisher owns one.
func (p *NATSPublisher) Close() error {
	if p.conn == nil {
		return nil
	}
	return p.conn.Drain()
}
