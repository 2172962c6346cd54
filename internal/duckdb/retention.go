package duckdb

import (
	"context"
	"sync"
	"time"
)

const (
	defaultJobRetentionDays = 30
	defaultStaleAfter       = 15 * time.Minute
	janitorInterval         = time.Hour

	// StaleJobDetail is the error detail set on jobs that stopped making progress.
	StaleJobDetail = "processamento interrompido: o job não concluiu dentro do tempo limite"
)

// JanitorConfig holds configuration for the job janitor.
type JanitorConfig struct {
	RetentionDays int           // terminal jobs older than this are deleted, 0 disables
	StaleAfter    time.Duration // PROCESSING jobs idle this long are failed, 0 disables
	Interval      time.Duration
}

// JobJanitor periodically expires stuck jobs and deletes old terminal jobs.
type JobJanitor struct {
	store         *Store
	retentionDays int
	staleAfter    time.Duration
	interval      time.Duration
	done          chan struct{}
	wg            sync.WaitGroup
	stopOnce      sync.Once
}

// NewJobJanitor starts a janitor. Returns nil when both retention and
// stale-job expiry are disabled.
func NewJobJanitor(store *Store, conf ...JanitorConfig) *JobJanitor {
	cfg := JanitorConfig{RetentionDays: defaultJobRetentionDays, StaleAfter: defaultStaleAfter}
	if len(conf) > 0 {
		cfg = conf[0]
	}
	if cfg.RetentionDays <= 0 && cfg.StaleAfter <= 0 {
		return nil
	}
	if cfg.Interval <= 0 {
		cfg.Interval = janitorInterval
		// Stale checks need to run at least as often as the threshold.
		if cfg.StaleAfter > 0 && cfg.StaleAfter < cfg.Interval {
			cfg.Interval = cfg.StaleAfter
		}
	}

	j := &JobJanitor{
		store:         store,
		retentionDays: cfg.RetentionDays,
		staleAfter:    cfg.StaleAfter,
		interval:      cfg.Interval,
		done:          make(chan struct{}),
	}

	// Startup pass to catch up after downtime.
	j.cleanup()

	j.wg.Add(1)
	go j.tickLoop()

	return j
}

func (j *JobJanitor) tickLoop() {
	defer j.wg.Done()
	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			j.cleanup()
		case <-j.done:
			return
		}
	}
}

func (j *JobJanitor) cleanup() {
	ctx := context.Background()
	now := j.store.utcNow()

	if j.staleAfter > 0 {
		n, err := j.store.FailStaleJobs(ctx, now.Add(-j.staleAfter), StaleJobDetail)
		if err != nil {
			j.store.log.Error("janitor: stale job check failed", "err", err)
		} else if n > 0 {
			j.store.log.Warn("janitor: failed stale jobs", "count", n, "stale_after", j.staleAfter)
		}
	}

	if j.retentionDays > 0 {
		cutoff := now.Add(-time.Duration(j.retentionDays) * 24 * time.Hour)
		n, err := j.store.DeleteJobsBefore(ctx, cutoff)
		if err != nil {
			j.store.log.Error("janitor: job retention failed", "err", err)
		} else if n > 0 {
			j.store.log.Info("janitor: deleted expired jobs", "count", n, "retention_days", j.retentionDays)
		}
	}
}

// Stop signals the janitor to stop and waits for it to finish.
func (j *JobJanitor) Stop() {
	j.stopOnce.Do(func() {
		close(j.done)
		j.wg.Wait()
	})
}
