package api

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/charmbracelet/log"

	"github.com/ramonehamilton/NMJL-Companion/internal/api/websocket"
	"github.com/ramonehamilton/NMJL-Companion/internal/nmjl/engine"
)

// Client message types.
const (
	messageAnalyze = "analyze"
	messagePing    = "ping"
)

// sessionMessage is one message from a live session client.
type sessionMessage struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

// liveSession runs a client's hands through its own scanner. Every analyze
// message supersedes the previous one, and only the newest result is sent.
type liveSession struct {
	client  *websocket.Client
	scanner *engine.Scanner
	logger  *log.Logger
}

func (s *Server) newSession(c *websocket.Client) websocket.Session {
	sess := &liveSession{
		client:  c,
		scanner: engine.NewScanner(s.engine, c.ID(), s.cfg.ScanTimeout, s.logger),
		logger:  s.logger.With("session", c.ID()),
	}
	go sess.forward()
	return sess
}

// forward sends scan results until the scanner is closed.
func (s *liveSession) forward() {
	for res := range s.scanner.Results() {
		s.client.Send(websocket.Event{Type: websocket.TypeScanResult, Data: res})
	}
}

func (s *liveSession) HandleMessage(data []byte) {
	var msg sessionMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		s.fail(fmt.Errorf("invalid message: %w", err))
		return
	}

	switch msg.Type {
	case messageAnalyze:
		var req engine.Request
		if err := json.Unmarshal(msg.Data, &req); err != nil {
			s.fail(fmt.Errorf("invalid analyze request: %w", err))
			return
		}
		// Scans belong to the session, not to the upgrade request.
		seq, err := s.scanner.Submit(context.Background(), req)
		if err != nil {
			s.fail(err)
			return
		}
		s.client.Send(websocket.Event{Type: websocket.TypeScanSubmitted, Data: map[string]uint64{"seq": seq}})
	case messagePing:
		s.client.Send(websocket.Event{Type: websocket.TypePong})
	default:
		s.fail(fmt.Errorf("unknown message type %q", msg.Type))
	}
}

func (s *liveSession) fail(err error) {
	s.logger.Debug("session message rejected", "err", err)
	s.client.Send(websocket.Event{Type: websocket.TypeError, Data: map[string]string{"message": err.Error()}})
}

func (s *liveSession) Close() {
	s.scanner.Close()
}
