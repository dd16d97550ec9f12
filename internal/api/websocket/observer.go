package websocket

import (
	"github.com/ramonehamilton/NMJL-Companion/internal/events"
)

// Message types sent by the live session, in addition to forwarded events.
const (
	TypeSessionStarted = "session:started"
	TypeScanSubmitted  = "scan:submitted"
	TypeScanResult     = "scan:result"
	TypePong           = "pong"
	TypeError          = "error"
)

// Observer forwards engine events to WebSocket clients. Events that belong to
// a live session go to that client only; the rest are broadcast.
type Observer struct {
	hub *Hub
}

// NewObserver creates an observer that forwards events to hub.
func NewObserver(hub *Hub) *Observer {
	return &Observer{hub: hub}
}

func (o *Observer) OnEvent(event events.Event) error {
	sessionID, data := routeEvent(event)
	if sessionID != "" {
		o.hub.SendTo(sessionID, Event{Type: event.Type, Data: data})
		return nil
	}
	o.hub.BroadcastEvent(Event{Type: event.Type, Data: data})
	return nil
}

func (o *Observer) Name() string { return "websocket" }

func (o *Observer) ShouldHandle(string) bool {
	return true
}

// routeEvent returns the owning session and the payload to send. Completions
// drop the full report; a session receives it with its scan result.
func routeEvent(event events.Event) (string, any) {
	switch data := event.Data.(type) {
	case events.AnalysisCompletedEvent:
		data.Report = nil
		return data.SessionID, data
	case events.AnalysisFailedEvent:
		return data.SessionID, data
	case events.ScanCancelledEvent:
		return data.SessionID, data
	}
	return "", event.Data
}

var _ events.Observer = (*Observer)(nil)
