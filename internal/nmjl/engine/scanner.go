package engine

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/charmbracelet/log"

	"github.com/ramonehamilton/NMJL-Companion/internal/events"
	"github.com/ramonehamilton/NMJL-Companion/internal/logging"
)

// ErrScannerClosed is returned by Submit after Close.
var ErrScannerClosed = errors.New("scanner closed")

// ScanResult is the outcome of the most recent submission.
type ScanResult struct {
	Seq    uint64 `json:"seq"`
	Report Report `json:"report"`
}

// Scanner runs full analyses in the background for one live session. A new
// submission cancels the scan in flight, and only the latest submission's
// result is ever delivered or published.
type Scanner struct {
	engine    *Engine
	timeout   time.Duration
	sessionID string
	logger    *log.Logger

	mu      sync.Mutex
	seq     uint64
	cancel  context.CancelFunc
	closed  bool
	results chan ScanResult
	wg      sync.WaitGroup
}

// NewScanner creates a scanner. A zero timeout leaves scans unbounded.
func NewScanner(e *Engine, sessionID string, timeout time.Duration, logger *log.Logger) *Scanner {
	return &Scanner{
		engine:    e,
		timeout:   timeout,
		sessionID: sessionID,
		logger:    logging.Or(logger).With("component", "scanner", "session", sessionID),
		results:   make(chan ScanResult, 1),
	}
}

// Results delivers completed scans. It holds at most one unread result; an
// unread result is replaced by a newer one. The channel is closed by Close.
func (s *Scanner) Results() <-chan ScanResult { return s.results }

// Submit starts a scan of req, cancelling any scan in flight, and returns its
// sequence number.
func (s *Scanner) Submit(ctx context.Context, req Request) (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return 0, ErrScannerClosed
	}
	if s.cancel != nil {
		s.cancel()
	}

	s.seq++
	seq := s.seq
	var scanCtx context.Context
	var cancel context.CancelFunc
	if s.timeout > 0 {
		scanCtx, cancel = context.WithTimeout(ctx, s.timeout)
	} else {
		scanCtx, cancel = context.WithCancel(ctx)
	}
	s.cancel = cancel
	req.SessionID = s.sessionID

	s.wg.Add(1)
	go s.scan(scanCtx, cancel, seq, req)
	return seq, nil
}

func (s *Scanner) scan(ctx context.Context, cancel context.CancelFunc, seq uint64, req Request) {
	defer s.wg.Done()
	defer cancel()

	report, err := s.engine.analyze(ctx, req)

	s.mu.Lock()
	defer s.mu.Unlock()
	if err != nil || seq != s.seq || s.closed {
		reason := "superseded"
		switch {
		case errors.Is(err, context.DeadlineExceeded):
			reason = "timeout"
		case s.closed:
			reason = "closed"
		}
		s.engine.opts.Metrics.Cancellations.Add(1)
		s.logger.Debug("scan dropped", "seq", seq, "reason", reason)
		s.engine.publish(events.New(context.Background(), events.TypeScanCancelled, events.ScanCancelledEvent{
			SessionID: s.sessionID,
			Seq:       seq,
			Reason:    reason,
		}))
		return
	}

	s.engine.finish(context.WithoutCancel(ctx), req, report)
	res := ScanResult{Seq: seq, Report: report}
	select {
	case s.results <- res:
	default:
		// Replace the unread older result.
		select {
		case <-s.results:
		default:
		}
		s.results <- res
	}
}

// Latest returns the sequence number of the newest submission.
func (s *Scanner) Latest() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.seq
}

// Close cancels the scan in flight, waits for it and closes Results.
func (s *Scanner) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	if s.cancel != nil {
		s.cancel()
	}
	s.mu.Unlock()

	s.wg.Wait()
	close(s.results)
}
