package health

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/eternisai/deepr-console/internal/logger"
	"github.com/eternisai/deepr-console/internal/metrics"
	"github.com/eternisai/deepr-console/internal/protocol"
	"github.com/robfig/cron/v3"
)

// cronParser accepts standard cron expressions, an optional seconds
// field, and descriptors like "@every 30s".
var cronParser = cron.NewParser(
	cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor,
)

// Poller checks backend health on a cron schedule. It keeps the latest
// snapshot and logs reachability transitions rather than every poll.
type Poller struct {
	client   *Client
	logger   *logger.Logger
	metrics  *metrics.Metrics
	schedule string
	cron     *cron.Cron

	mu        sync.Mutex
	polled    bool
	reachable bool
	last      *protocol.HealthStatus
}

// NewPoller creates a poller that runs the given client on schedule.
func NewPoller(client *Client, schedule string, log *logger.Logger, m *metrics.Metrics) *Poller {
	return &Poller{
		client:   client,
		logger:   log.WithComponent("health"),
		metrics:  m,
		schedule: schedule,
		cron:     cron.New(cron.WithParser(cronParser)),
	}
}

// Start registers the poll job and starts the scheduler. The first poll
// fires after one schedule interval, not immediately.
func (p *Poller) Start() error {
	if _, err := p.cron.AddFunc(p.schedule, p.poll); err != nil {
		return fmt.Errorf("invalid health poll schedule %q: %w", p.schedule, err)
	}
	p.cron.Start()
	p.logger.Info("health poller started", slog.String("schedule", p.schedule))
	return nil
}

// Stop stops the scheduler. Does not wait for a running poll.
func (p *Poller) Stop() {
	p.cron.Stop()
}

// Reachable reports whether the last poll succeeded.
func (p *Poller) Reachable() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.reachable
}

// Last returns a copy of the most recent successful snapshot, or nil if
// no poll has succeeded yet.
func (p *Poller) Last() *protocol.HealthStatus {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.last == nil {
		return nil
	}
	snapshot := *p.last
	return &snapshot
}

func (p *Poller) poll() {
	status, err := p.client.Check(context.Background())

	p.mu.Lock()
	defer p.mu.Unlock()

	if err != nil {
		p.metrics.HealthPolls.WithLabelValues("failure").Inc()
		if p.reachable || !p.polled {
			p.logger.Warn("backend health check failed",
				slog.String("error", err.Error()))
		}
		p.polled = true
		p.reachable = false
		return
	}

	p.metrics.HealthPolls.WithLabelValues("success").Inc()
	if !p.reachable {
		p.logger.Info("backend healthy",
			slog.String("status", status.Status),
			slog.Int("active_sessions", status.ActiveSessions),
			slog.String("ram_used_mb", status.SystemUsage.RAMUsedMB.String()))
	}
	p.polled = true
	p.reachable = true
	p.last = status
}
