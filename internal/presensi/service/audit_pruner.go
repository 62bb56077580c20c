package service

import (
	"context"
	"sync"
	"time"

	"github.com/hadir-sekolah/presensi/internal/logsvc"
	"github.com/hadir-sekolah/presensi/internal/presensi/store"
)

// AuditPruner periodically deletes submission audit events older than a
// configurable retention period.  It runs as a background goroutine and
// is safe to stop via its context or the Stop method.
//
// A retention of 0 disables pruning entirely.
type AuditPruner struct {
	store     store.SubmissionEventStore
	retention time.Duration
	interval  time.Duration
	logger    logsvc.Logger
	now       func() time.Time

	cancel   context.CancelFunc
	done     chan struct{}
	stopOnce sync.Once
}

// PrunerConfig holds the parameters for NewAuditPruner.
type PrunerConfig struct {
	// RetentionDays is how many days of audit history to keep.
	// 0 means keep everything (pruner will not start).
	RetentionDays int

	// IntervalHours is how often the pruner runs.  Defaults to 6.
	IntervalHours int
}

// NewAuditPruner creates a pruner but does not start it.
// Call Start to begin the background loop.
func NewAuditPruner(s store.SubmissionEventStore, cfg PrunerConfig, logger logsvc.Logger) *AuditPruner {
	interval := time.Duration(cfg.IntervalHours) * time.Hour
	if interval <= 0 {
		interval = 6 * time.Hour
	}
	if logger == nil {
		logger = logsvc.Discard()
	}

	return &AuditPruner{
		store:     s,
		retention: time.Duration(cfg.RetentionDays) * 24 * time.Hour,
		interval:  interval,
		logger:    logger,
		now:       time.Now,
		done:      make(chan struct{}),
	}
}

// Start begins the background pruning loop.  It runs an immediate prune
// on startup, then repeats on the configured interval.  The loop exits
// when ctx is cancelled or Stop is called.
func (p *AuditPruner) Start(ctx context.Context) {
	if p.retention <= 0 {
		p.logger.Infof("audit pruner disabled (retention=0)")
		close(p.done)
		return
	}

	ctx, p.cancel = context.WithCancel(ctx)

	go p.loop(ctx)

	p.logger.Infof("audit pruner started (retention=%dd, interval=%dh)",
		int(p.retention.Hours()/24), int(p.interval.Hours()))
}

// Stop signals the pruner to exit and waits for it to finish. Start must
// have been called.
func (p *AuditPruner) Stop() {
	p.stopOnce.Do(func() {
		if p.cancel != nil {
			p.cancel()
		}
	})
	<-p.done
}

// PruneNow runs one prune pass and returns the number of events removed.
func (p *AuditPruner) PruneNow(ctx context.Context) (int64, error) {
	cutoff := p.now().UTC().Add(-p.retention)
	return p.store.PruneOlderThan(ctx, cutoff)
}

func (p *AuditPruner) loop(ctx context.Context) {
	defer close(p.done)

	// Run immediately on startup to clean up any backlog.
	p.prune(ctx)

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.prune(ctx)
		}
	}
}

func (p *AuditPruner) prune(ctx context.Context) {
	deleted, err := p.PruneNow(ctx)
	if err != nil {
		p.logger.Errorf("audit prune error: %v", err)
		return
	}
	if deleted > 0 {
		p.logger.Infof("audit prune: deleted %d events older than %dd",
			deleted, int(p.retention.Hours()/24))
	}
}
