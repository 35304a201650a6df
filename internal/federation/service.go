package federation

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// DefaultProviderTimeout bounds each individual provider call.
const DefaultProviderTimeout = 30 * time.Second

// Option configures a Service.
type Option func(*Service)

// WithProviderTimeout sets the per-provider call timeout.
func WithProviderTimeout(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.timeout = d
		}
	}
}

// WithLogger sets the logger used to report partial failures.
func WithLogger(l *zap.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.log = l
		}
	}
}

// Service is the federation controller. It owns one base provider and an
// ordered set of custom providers, and is the single entry point for variable
// resolution, observation fetch and place lookups. It holds no mutable state
// and is safe for concurrent use.
type Service struct {
	base      BaseProvider
	custom    []ProviderClient
	threshold float64
	timeout   time.Duration
	log       *zap.Logger
}

// NewService creates a Service. The custom-candidate threshold is fixed here
// from the number of custom providers.
func NewService(base BaseProvider, custom []ProviderClient, opts ...Option) *Service {
	s := &Service{
		base:      base,
		custom:    append([]ProviderClient(nil), custom...),
		threshold: CustomThreshold(len(custom)),
		timeout:   DefaultProviderTimeout,
		log:       zap.L(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Threshold returns the custom-candidate acceptance threshold.
func (s *Service) Threshold() float64 {
	return s.threshold
}

// Providers lists the configured providers, base first, then custom in registration order.
func (s *Service) Providers() []Provider {
	out := make([]Provider, 0, 1+len(s.custom))
	for _, p := range s.all() {
		out = append(out, p.Provider())
	}
	return out
}

func (s *Service) all() []ProviderClient {
	return append([]ProviderClient{s.base}, s.custom...)
}

// ResolveVariable maps a free-text description to a single variable id.
// A match with Found == false is the soft "no match" outcome.
func (s *Service) ResolveVariable(ctx context.Context, query string) VariableMatch {
	defer observeFanout("rank_candidates", time.Now())

	providers := s.all()
	results := make([][]VariableCandidate, len(providers))

	var g errgroup.Group
	for i, p := range providers {
		g.Go(func() error {
			cctx, cancel := context.WithTimeout(ctx, s.timeout)
			defer cancel()
			cands := append([]VariableCandidate(nil), p.RankCandidates(cctx, query)...)
			id := p.Provider().ID
			for j := range cands {
				if cands[j].ProviderID == "" {
					cands[j].ProviderID = id
				}
			}
			results[i] = cands
			return nil
		})
	}
	_ = g.Wait()

	best, ok := SelectVariable(results[0], results[1:], s.threshold)
	if !ok {
		s.log.Debug("no variable match", zap.String("query", query))
		return VariableMatch{Query: query}
	}
	return VariableMatch{
		Query:      query,
		VariableID: best.VariableID,
		Score:      best.Score,
		ProviderID: best.ProviderID,
		Found:      true,
	}
}

// ResolveVariables resolves each query independently, preserving input order.
func (s *Service) ResolveVariables(ctx context.Context, queries []string) []VariableMatch {
	out := make([]VariableMatch, len(queries))
	for i, q := range queries {
		out[i] = s.ResolveVariable(ctx, q)
	}
	return out
}

// FetchObservations queries every provider concurrently and merges the
// results. A provider that fails or times out contributes nothing; the only
// error returned is the caller's own context ending.
func (s *Service) FetchObservations(ctx context.Context, sel ObservationSelector) (*AggregatedResponse, error) {
	start := time.Now()
	requestID := uuid.NewString()

	providers := s.all()
	contribs := make([]Contribution, len(providers))

	var g errgroup.Group
	for i, p := range providers {
		g.Go(func() error {
			id := p.Provider().ID
			contribs[i] = Contribution{ProviderID: id}

			cctx, cancel := context.WithTimeout(ctx, s.timeout)
			defer cancel()

			facets, err := p.FetchObservations(cctx, sel)
			if err != nil {
				providerFailures.WithLabelValues(id, "fetch_observations").Inc()
				s.log.Warn("provider observation fetch failed",
					zap.String("request_id", requestID),
					zap.String("provider", id),
					zap.Error(err),
				)
				return nil
			}
			contribs[i].Facets = facets
			return nil
		})
	}
	_ = g.Wait()
	observeFanout("fetch_observations", start)

	if err := ctx.Err(); err != nil {
		return nil, eris.Wrap(err, "fetch observations")
	}

	resp := MergeFacets(contribs[0], contribs[1:], sel.AllowsFacet)
	s.enrichPlaceNames(ctx, requestID, resp)
	return resp, nil
}

// enrichPlaceNames attaches display names with one bulk lookup. Failures are logged only.
func (s *Service) enrichPlaceNames(ctx context.Context, requestID string, resp *AggregatedResponse) {
	ids := resp.PlaceIDs()
	if len(ids) == 0 {
		return
	}

	cctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	names, err := s.base.PlaceNames(cctx, ids)
	if err != nil {
		providerFailures.WithLabelValues(s.base.Provider().ID, "place_names").Inc()
		s.log.Warn("place name enrichment failed",
			zap.String("request_id", requestID),
			zap.Error(err),
		)
		return
	}
	for id, name := range names {
		if rec, ok := resp.Places[id]; ok {
			rec.Name = name
		}
	}
}

// ResolvePlaces resolves place names through the base provider. Names that
// match nothing map to an empty slice.
func (s *Service) ResolvePlaces(ctx context.Context, names []string) (map[string][]Place, error) {
	cctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	places, err := s.base.ResolvePlaceNames(cctx, names)
	if err != nil {
		return nil, eris.Wrap(err, "resolve places")
	}
	out := make(map[string][]Place, len(names))
	for _, n := range names {
		out[n] = append([]Place{}, places[n]...)
	}
	return out, nil
}

// ChildPlaceTypes lists place types that have at least one child within parentPlaceID.
func (s *Service) ChildPlaceTypes(ctx context.Context, parentPlaceID string) ([]string, error) {
	cctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	types, err := s.base.ChildPlaceTypes(cctx, parentPlaceID)
	if err != nil {
		return nil, eris.Wrapf(err, "child place types of %s", parentPlaceID)
	}
	if types == nil {
		types = []string{}
	}
	return types, nil
}

func observeFanout(op string, start time.Time) {
	fanoutDuration.WithLabelValues(op).Observe(time.Since(start).Seconds())
}
