package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/go-co-op/gocron"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// defaultInterval applies when no positive refresh interval is configured.
const defaultInterval = 24 * time.Hour

// CatalogRefresher reloads a cached catalogue from its provider.
type CatalogRefresher interface {
	RefreshAdministrativeAreaTypes(ctx context.Context) ([]string, error)
}

// Probe is a provider reachability check.
type Probe struct {
	ProviderID string
	Ping       func(ctx context.Context) error
}

// Scheduler periodically refreshes cached place metadata and probes providers.
type Scheduler struct {
	scheduler *gocron.Scheduler
	refresher CatalogRefresher
	probes    []Probe
	interval  time.Duration
	timeout   time.Duration
	log       *zap.Logger
}

// New creates a new Scheduler.
func New(interval, timeout time.Duration, refresher CatalogRefresher, probes []Probe, log *zap.Logger) *Scheduler {
	if log == nil {
		log = zap.L()
	}
	return &Scheduler{
		scheduler: gocron.NewScheduler(time.UTC),
		refresher: refresher,
		probes:    probes,
		interval:  interval,
		timeout:   timeout,
		log:       log,
	}
}

// Start schedules the refresh job, runs it once immediately and starts the
// underlying scheduler.
func (s *Scheduler) Start() error {
	if s.refresher == nil && len(s.probes) == 0 {
		s.log.Info("scheduler: nothing to schedule")
		return nil
	}

	interval := s.interval
	if interval <= 0 {
		interval = defaultInterval
	}

	if _, err := s.scheduler.Every(interval).Do(s.RunOnce); err != nil {
		return eris.Wrapf(err, "schedule refresh every %s", interval)
	}

	s.scheduler.StartAsync()
	return nil
}

// RunOnce refreshes the catalogue and probes every provider concurrently.
func (s *Scheduler) RunOnce() {
	s.log.Debug("scheduler: running refresh job")

	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	var wg sync.WaitGroup
	if s.refresher != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			types, err := s.refresher.RefreshAdministrativeAreaTypes(ctx)
			if err != nil {
				s.log.Warn("scheduler: catalogue refresh failed", zap.Error(err))
				return
			}
			s.log.Debug("scheduler: catalogue refreshed", zap.Int("types", len(types)))
		}()
	}
	for _, p := range s.probes {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := p.Ping(ctx); err != nil {
				s.log.Warn("scheduler: provider unreachable", zap.String("provider", p.ProviderID), zap.Error(err))
			}
		}()
	}
	wg.Wait()

	s.log.Debug("scheduler: completed refresh job")
}

// Stop stops the scheduler and cancels any future jobs.
func (s *Scheduler) Stop() {
	if s.scheduler != nil {
		s.scheduler.Stop()
	}
}
