package reporting

import (
	"context"
	"fmt"
	"time"

	"github.com/vanshwebstep/screeningstarnewnode-sub002/internal/infrastructure/monitoring/logging"
)

// DelayBuilder is the part of DelayCalculator the scanner drives.
type DelayBuilder interface {
	Build(ctx context.Context, now time.Time) (*Tree, error)
}

// ScannerConfig tunes the periodic breach scan.
type ScannerConfig struct {
	Interval   time.Duration
	Timeout    time.Duration
	MaxRetries int
	// Backoff is the first retry pause; it doubles per attempt.
	Backoff time.Duration
}

// Scanner rebuilds the delay tree on a fixed interval so breach events go
// out without anyone requesting the report.
type Scanner struct {
	delay DelayBuilder
	cfg   ScannerConfig
	log   logging.Logger
	now   func() time.Time
}

func NewScanner(delay DelayBuilder, cfg ScannerConfig, log logging.Logger) *Scanner {
	if cfg.Interval <= 0 {
		cfg.Interval = 15 * time.Minute
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Minute
	}
	if cfg.Backoff <= 0 {
		cfg.Backoff = time.Second
	}
	return &Scanner{delay: delay, cfg: cfg, log: log.Named("report.scanner"), now: time.Now}
}

// Run scans once immediately and then every Interval until ctx is done.
// A failed scan is logged; only ctx ends the loop.
func (s *Scanner) Run(ctx context.Context) error {
	s.log.Info("TAT breach scanner started", logging.Duration("interval", s.cfg.Interval))
	ticker := time.NewTicker(s.cfg.Interval)
	defer ticker.Stop()

	for {
		if err := s.ScanOnce(ctx); err != nil && ctx.Err() == nil {
			s.log.Error("TAT breach scan failed", logging.Err(err))
		}
		select {
		case <-ctx.Done():
			s.log.Info("TAT breach scanner stopped")
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// ScanOnce builds one delay tree, retrying with exponential backoff.
func (s *Scanner) ScanOnce(ctx context.Context) error {
	var lastErr error
	for attempt := 0; attempt <= s.cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			backoff := s.cfg.Backoff << uint(attempt-1)
			s.log.Warn("retrying TAT breach scan", logging.Int("attempt", attempt), logging.Duration("backoff", backoff))
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return ctx.Err()
			}
		}

		start := time.Now()
		scanCtx, cancel := context.WithTimeout(ctx, s.cfg.Timeout)
		tree, err := s.delay.Build(scanCtx, s.now())
		cancel()
		if err == nil {
			s.log.Info("TAT breach scan completed",
				logging.Int("delayed_cases", tree.CaseCount()),
				logging.Duration("duration", time.Since(start)))
			return nil
		}
		lastErr = err
		if ctx.Err() != nil {
			return ctx.Err()
		}
	}
	return fmt.Errorf("exhausted %d retries: %w", s.cfg.MaxRetries, lastErr)
}
