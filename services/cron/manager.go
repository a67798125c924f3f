package cron

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sahilchouksey/module-enhancer/utils/logger"
)

const (
	// APICallLogRetention is how long cost ledger rows are kept
	APICallLogRetention = 30 * 24 * time.Hour

	pruneSpec  = "0 0 2 * * *"
	jobTimeout = time.Minute
)

// LedgerPruner removes old cost ledger entries
type LedgerPruner interface {
	PruneAPICallLogs(ctx context.Context, cutoff time.Time) (int64, error)
}

// CronManager runs maintenance jobs next to the enhancement queue
type CronManager struct {
	cron   *cron.Cron
	ledger LedgerPruner
	log    *logger.Logger
}

// NewCronManager creates a new cron manager
func NewCronManager(ledger LedgerPruner, log *logger.Logger) *CronManager {
	// Create cron with seconds precision
	c := cron.New(cron.WithSeconds())

	return &CronManager{
		cron:   c,
		ledger: ledger,
		log:    log.With("component", "cron"),
	}
}

// Start registers the jobs and starts the scheduler
func (m *CronManager) Start() error {
	if err := m.registerJobs(); err != nil {
		return err
	}

	m.cron.Start()
	m.log.Info("Cron jobs started", "jobs", len(m.cron.Entries()))
	return nil
}

// Stop stops the scheduler and waits for running jobs
func (m *CronManager) Stop() {
	<-m.cron.Stop().Done()
	m.log.Info("Cron jobs stopped")
}

func (m *CronManager) registerJobs() error {
	// Daily at 2 AM: drop old ledger rows
	_, err := m.cron.AddFunc(pruneSpec, m.PruneCostLedger)
	return err
}

// PruneCostLedger deletes ledger rows older than APICallLogRetention
func (m *CronManager) PruneCostLedger() {
	ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
	defer cancel()

	started := time.Now()
	deleted, err := m.ledger.PruneAPICallLogs(ctx, started.Add(-APICallLogRetention))
	if err != nil {
		m.log.Error("Failed to prune cost ledger", "error", err)
		return
	}
	m.log.Info("Cost ledger pruned", "deleted", deleted, "took", time.Since(started))
}
