package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/charmbracelet/log"

	"github.com/ramonehamilton/NMJL-Companion/internal/events"
	"github.com/ramonehamilton/NMJL-Companion/internal/logging"
	"github.com/ramonehamilton/NMJL-Companion/internal/storage/models"
)

const runLogTimeout = 5 * time.Second

// RunLog records every completed analysis in the analysis_runs table.
type RunLog struct {
	service *Service
	logger  *log.Logger
}

// NewRunLog creates the run log observer.
func NewRunLog(service *Service, logger *log.Logger) *RunLog {
	return &RunLog{service: service, logger: logging.Or(logger).With("component", "run-log")}
}

func (l *RunLog) OnEvent(event events.Event) error {
	payload, ok := events.Payload[events.AnalysisCompletedEvent](event)
	if !ok {
		return fmt.Errorf("run log: unexpected payload %T", event.Data)
	}

	parent := event.Context
	if parent == nil {
		parent = context.Background()
	}
	// The run outlives the request that produced it.
	ctx, cancel := context.WithTimeout(context.WithoutCancel(parent), runLogTimeout)
	defer cancel()

	run := &models.AnalysisRun{
		RunID:         payload.RunID,
		SessionID:     payload.SessionID,
		HandSignature: payload.HandSignature,
		TopPatternID:  payload.TopPatternID,
		TopScore:      payload.TopScore,
		TopTier:       payload.TopTier,
		Viable:        payload.Viable,
		CacheHit:      payload.CacheHit,
		DurationMS:    payload.Duration.Milliseconds(),
	}
	if err := l.service.RecordRun(ctx, run); err != nil {
		return err
	}
	l.logger.Debug("run recorded", "run", run.RunID, "pattern", run.TopPatternID)
	return nil
}

func (l *RunLog) Name() string { return "run-log" }

func (l *RunLog) ShouldHandle(eventType string) bool {
	return eventType == events.TypeAnalysisCompleted
}
