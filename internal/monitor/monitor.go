package monitor

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"convertd/internal/config"
	"convertd/internal/jobs"
	"convertd/internal/logging"
	"convertd/internal/status"
)

// Monitor periodically audits non-terminal jobs against stage time budgets.
type Monitor struct {
	store   *jobs.Store
	manager *status.Manager
	logger  *slog.Logger

	pendingTimeout    time.Duration
	processingTimeout time.Duration
	sweepInterval     time.Duration
	sweepDeadline     time.Duration

	mu        sync.Mutex
	running   bool
	cancel    context.CancelFunc
	wg        sync.WaitGroup
	lastSweep time.Time
}

// State describes the monitor's schedule for status reporting.
type State struct {
	Running   bool
	Interval  time.Duration
	LastSweep time.Time
	NextSweep time.Time
}

// New constructs a Monitor from monitor configuration.
func New(cfg config.Monitor, store *jobs.Store, manager *status.Manager, logger *slog.Logger) *Monitor {
	return &Monitor{
		store:             store,
		manager:           manager,
		logger:            logging.NewComponentLogger(logger, "monitor"),
		pendingTimeout:    cfg.PendingTimeout(),
		processingTimeout: cfg.ProcessingTimeout(),
		sweepInterval:     cfg.SweepInterval(),
		sweepDeadline:     cfg.SweepDeadline(),
	}
}

// Start transitions the monitor to running, performs one immediate sweep,
// and schedules recurring sweeps. Calling Start while running is a logged
// no-op.
func (m *Monitor) Start(ctx context.Context) {
	m.mu.Lock()
	if m.running {
		m.mu.Unlock()
		m.logger.Info("health monitoring already running")
		return
	}
	runCtx, cancel := context.WithCancel(ctx)
	m.running = true
	m.cancel = cancel
	m.wg.Add(1)
	m.mu.Unlock()

	m.logger.Info("health monitoring started", logging.Duration("interval", m.sweepInterval))

	go func() {
		defer m.wg.Done()

		m.sweep(runCtx)

		ticker := time.NewTicker(m.sweepInterval)
		defer ticker.Stop()
		for {
			select {
			case <-runCtx.Done():
				return
			case <-ticker.C:
				m.sweep(runCtx)
			}
		}
	}()
}

// Stop cancels the recurring schedule and waits for an in-flight sweep.
// Calling Stop while already stopped is a no-op.
func (m *Monitor) Stop() {
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return
	}
	cancel := m.cancel
	m.running = false
	m.cancel = nil
	m.mu.Unlock()

	cancel()
	m.wg.Wait()
	m.logger.Info("health monitoring stopped")
}

// Status returns the monitor's current schedule state.
func (m *Monitor) Status() State {
	m.mu.Lock()
	defer m.mu.Unlock()

	state := State{
		Running:   m.running,
		Interval:  m.sweepInterval,
		LastSweep: m.lastSweep,
	}
	if !m.lastSweep.IsZero() {
		state.NextSweep = m.lastSweep.Add(m.sweepInterval)
	}
	return state
}

func (m *Monitor) sweep(ctx context.Context) {
	start := time.Now()
	checks, err := m.RunHealthCheck(ctx)
	if err != nil {
		m.logger.Error("health sweep failed", logging.Error(err))
		return
	}
	if elapsed := time.Since(start); elapsed > m.sweepDeadline {
		m.logger.Warn("health sweep overran deadline",
			logging.Duration("elapsed", elapsed),
			logging.Duration("deadline", m.sweepDeadline),
		)
	}
	m.logger.Debug("health sweep completed", logging.Int("checked", len(checks)))
}
