package main

import (
	"net/http"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/i474232898/datacommons-federation/internal/config"
	"github.com/i474232898/datacommons-federation/internal/datacommons"
	"github.com/i474232898/datacommons-federation/internal/federation"
	"github.com/i474232898/datacommons-federation/internal/scheduler"
	"github.com/i474232898/datacommons-federation/internal/store"
)

// components holds the wired components shared by every serve mode.
type components struct {
	service   *federation.Service
	scheduler *scheduler.Scheduler
}

func buildComponents(cfg *config.Config, log *zap.Logger) (*components, error) {
	// Shared HTTP client for outbound provider calls.
	httpClient := &http.Client{Timeout: cfg.HTTP.Timeout}

	backoff := datacommons.DefaultBackoff
	backoff.MaxRetries = cfg.HTTP.MaxRetries

	// Child place type cache with configured retention.
	cache := store.NewMemoryStore(cfg.Store.MaxEntries, cfg.Store.MaxAge)

	newClient := func(p config.ProviderConfig, withCache bool) (*datacommons.Client, error) {
		c := datacommons.Config{
			Provider: federation.Provider{
				ID:          p.ID,
				Name:        p.Name,
				Endpoint:    p.SiteURL,
				APIKey:      p.APIKey,
				SearchIndex: p.SearchIndex,
			},
			APIURL:     p.APIURL,
			HTTPClient: httpClient,
			Backoff:    backoff,
			Logger:     log,
		}
		if withCache {
			c.Cache = cache
		}
		return datacommons.NewClient(c)
	}

	base, err := newClient(cfg.Base, true)
	if err != nil {
		return nil, eris.Wrap(err, "base provider")
	}
	probes := []scheduler.Probe{{ProviderID: base.Provider().ID, Ping: base.Ping}}

	custom := make([]federation.ProviderClient, 0, len(cfg.Custom))
	for _, pc := range cfg.Custom {
		c, err := newClient(pc, false)
		if err != nil {
			return nil, eris.Wrapf(err, "custom provider %s", pc.ID)
		}
		custom = append(custom, c)
		probes = append(probes, scheduler.Probe{ProviderID: c.Provider().ID, Ping: c.Ping})
	}

	service := federation.NewService(base, custom,
		federation.WithProviderTimeout(cfg.Federation.ProviderTimeout),
		federation.WithLogger(log),
	)
	log.Info("federation configured",
		zap.Int("custom_providers", len(custom)),
		zap.Float64("custom_threshold", service.Threshold()),
	)

	sched := scheduler.New(cfg.Scheduler.RefreshInterval, cfg.Federation.ProviderTimeout, base, probes, log)

	return &components{service: service, scheduler: sched}, nil
}
