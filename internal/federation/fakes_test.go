package federation

import (
	"context"
	"errors"
	"sync/atomic"
)

var errTransport = errors.New("dial tcp: connection refused")

type fakeProvider struct {
	id         string
	candidates []VariableCandidate
	facets     FacetSet
	fetchErr   error
	block      bool

	names     map[string]string
	namesErr  error
	places    map[string][]Place
	childType []string

	fetchCalls atomic.Int32
	nameCalls  atomic.Int32
}

func (f *fakeProvider) Provider() Provider {
	return Provider{ID: f.id, Name: f.id}
}

func (f *fakeProvider) RankCandidates(ctx context.Context, _ string) []VariableCandidate {
	if f.block {
		<-ctx.Done()
		return nil
	}
	return f.candidates
}

func (f *fakeProvider) FetchObservations(ctx context.Context, _ ObservationSelector) (FacetSet, error) {
	f.fetchCalls.Add(1)
	if f.block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	if f.fetchErr != nil {
		return nil, f.fetchErr
	}
	return f.facets, nil
}

func (f *fakeProvider) ResolvePlaceNames(_ context.Context, _ []string) (map[string][]Place, error) {
	return f.places, nil
}

func (f *fakeProvider) PlaceNames(_ context.Context, ids []string) (map[string]string, error) {
	f.nameCalls.Add(1)
	if f.namesErr != nil {
		return nil, f.namesErr
	}
	out := make(map[string]string)
	for _, id := range ids {
		if n, ok := f.names[id]; ok {
			out[id] = n
		}
	}
	return out, nil
}

func (f *fakeProvider) ChildPlaceTypes(_ context.Context, _ string) ([]string, error) {
	return f.childType, nil
}

func facet(id string, count int) Facet {
	return Facet{
		FacetID:          id,
		ObservationCount: count,
		Observations:     []Observation{{Date: "2020", Value: float64(count)}},
	}
}

func facetIDs(fs []Facet) []string {
	ids := make([]string, 0, len(fs))
	for _, f := range fs {
		ids = append(ids, f.FacetID)
	}
	return ids
}
