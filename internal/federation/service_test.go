package federation

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func mustSelector(t *testing.T, in SelectorInput) ObservationSelector {
	t.Helper()
	sel, err := NewObservationSelector(in)
	require.NoError(t, err)
	return sel
}

func TestServiceThresholdFixedAtConstruction(t *testing.T) {
	base := &fakeProvider{id: "base"}

	assert.Equal(t, 0.70, NewService(base, nil).Threshold())
	assert.Equal(t, 0.70, NewService(base, []ProviderClient{&fakeProvider{id: "c0"}}).Threshold())
	assert.Equal(t, 0.80, NewService(base, []ProviderClient{&fakeProvider{id: "c0"}, &fakeProvider{id: "c1"}}).Threshold())
}

func TestServiceProvidersOrder(t *testing.T) {
	svc := NewService(&fakeProvider{id: "base"}, []ProviderClient{&fakeProvider{id: "c0"}, &fakeProvider{id: "c1"}})

	var ids []string
	for _, p := range svc.Providers() {
		ids = append(ids, p.ID)
	}
	assert.Equal(t, []string{"base", "c0", "c1"}, ids)
}

func TestServiceResolveVariableBaseFallback(t *testing.T) {
	base := &fakeProvider{id: "base", candidates: []VariableCandidate{{VariableID: "Count_Person", Score: 0.65}}}
	svc := NewService(base, nil, WithLogger(zap.NewNop()))

	m := svc.ResolveVariable(context.Background(), "population")
	assert.True(t, m.Found)
	assert.Equal(t, "Count_Person", m.VariableID)
	assert.Equal(t, "base", m.ProviderID)
	assert.Equal(t, "population", m.Query)
	assert.NoError(t, m.Err())
}

func TestServiceResolveVariablePrefersConfidentCustom(t *testing.T) {
	base := &fakeProvider{id: "base", candidates: []VariableCandidate{{VariableID: "Count_Person", Score: 0.9}}}
	custom := &fakeProvider{id: "custom", candidates: []VariableCandidate{{VariableID: "Count_Person_Custom", Score: 0.71}}}
	svc := NewService(base, []ProviderClient{custom}, WithLogger(zap.NewNop()))

	m := svc.ResolveVariable(context.Background(), "population")
	assert.True(t, m.Found)
	assert.Equal(t, "Count_Person_Custom", m.VariableID)
	assert.Equal(t, "custom", m.ProviderID)
}

func TestServiceResolveVariablesNoMatch(t *testing.T) {
	svc := NewService(&fakeProvider{id: "base"}, []ProviderClient{&fakeProvider{id: "c0"}}, WithLogger(zap.NewNop()))

	got := svc.ResolveVariables(context.Background(), []string{"a", "b"})
	require.Len(t, got, 2)
	assert.False(t, got[0].Found)
	assert.True(t, errors.Is(got[0].Err(), ErrNoMatch))
	assert.Equal(t, "b", got[1].Query)
}

func TestServiceResolveVariableSlowProviderTimesOut(t *testing.T) {
	base := &fakeProvider{id: "base", candidates: []VariableCandidate{{VariableID: "Count_Person", Score: 0.6}}}
	slow := &fakeProvider{id: "slow", block: true}
	svc := NewService(base, []ProviderClient{slow}, WithProviderTimeout(20*time.Millisecond), WithLogger(zap.NewNop()))

	m := svc.ResolveVariable(context.Background(), "population")
	assert.Equal(t, "Count_Person", m.VariableID)
}

func TestServiceFetchObservationsMergesAndEnriches(t *testing.T) {
	base := &fakeProvider{
		id:     "base",
		facets: FacetSet{caPop: {facet("f1", 120)}},
		names:  map[string]string{"geoId/06": "California"},
	}
	custom := &fakeProvider{id: "custom", facets: FacetSet{caPop: {facet("f1", 120), facet("f2", 50)}}}
	svc := NewService(base, []ProviderClient{custom}, WithLogger(zap.NewNop()))

	sel := mustSelector(t, SelectorInput{VariableIDs: []string{"Count_Person"}, PlaceIDs: []string{"geoId/06"}})
	resp, err := svc.FetchObservations(context.Background(), sel)
	require.NoError(t, err)

	rec := resp.Places["geoId/06"]
	require.NotNil(t, rec)
	assert.Equal(t, "California", rec.Name)

	series := rec.Variables["Count_Person"]
	assert.Equal(t, "f2", series.Primary.FacetID)
	assert.Equal(t, []string{"f1"}, facetIDs(series.Alternatives))
	assert.Equal(t, "base", series.Alternatives[0].ProviderID)
	assert.Equal(t, int32(1), base.nameCalls.Load(), "names fetched in one bulk call")
}

func TestServiceFetchObservationsIsolatesProviderFailure(t *testing.T) {
	base := &fakeProvider{id: "base", fetchErr: errors.Join(ErrProviderUnavailable, errTransport)}
	custom := &fakeProvider{id: "custom", facets: FacetSet{caPop: {facet("f2", 50)}}}
	svc := NewService(base, []ProviderClient{custom}, WithLogger(zap.NewNop()))

	sel := mustSelector(t, SelectorInput{VariableIDs: []string{"Count_Person"}, PlaceIDs: []string{"geoId/06"}})
	resp, err := svc.FetchObservations(context.Background(), sel)
	require.NoError(t, err)

	series := resp.Places["geoId/06"].Variables["Count_Person"]
	assert.Equal(t, "f2", series.Primary.FacetID)
	assert.Equal(t, int32(1), base.fetchCalls.Load())
	assert.Equal(t, int32(1), custom.fetchCalls.Load())
}

func TestServiceFetchObservationsTimeoutIsEmptyContribution(t *testing.T) {
	base := &fakeProvider{id: "base", facets: FacetSet{caPop: {facet("f1", 120)}}}
	slow := &fakeProvider{id: "slow", block: true}
	svc := NewService(base, []ProviderClient{slow}, WithProviderTimeout(20*time.Millisecond), WithLogger(zap.NewNop()))

	sel := mustSelector(t, SelectorInput{VariableIDs: []string{"Count_Person"}, PlaceIDs: []string{"geoId/06"}})
	resp, err := svc.FetchObservations(context.Background(), sel)
	require.NoError(t, err)
	assert.Equal(t, "f1", resp.Places["geoId/06"].Variables["Count_Person"].Primary.FacetID)
}

func TestServiceFetchObservationsNameLookupFailureIsIgnored(t *testing.T) {
	base := &fakeProvider{id: "base", facets: FacetSet{caPop: {facet("f1", 120)}}, namesErr: errTransport}
	svc := NewService(base, nil, WithLogger(zap.NewNop()))

	sel := mustSelector(t, SelectorInput{VariableIDs: []string{"Count_Person"}, PlaceIDs: []string{"geoId/06"}})
	resp, err := svc.FetchObservations(context.Background(), sel)
	require.NoError(t, err)
	assert.Empty(t, resp.Places["geoId/06"].Name)
	assert.Equal(t, "f1", resp.Places["geoId/06"].Variables["Count_Person"].Primary.FacetID)
}

func TestServiceFetchObservationsAllowlist(t *testing.T) {
	base := &fakeProvider{id: "base", facets: FacetSet{caPop: {facet("f1", 120), facet("f3", 3)}}}
	custom := &fakeProvider{id: "custom", facets: FacetSet{caPop: {facet("f2", 50)}}}
	svc := NewService(base, []ProviderClient{custom}, WithLogger(zap.NewNop()))

	sel := mustSelector(t, SelectorInput{
		VariableIDs: []string{"Count_Person"},
		PlaceIDs:    []string{"geoId/06"},
		FacetIDs:    []string{"f3"},
	})
	resp, err := svc.FetchObservations(context.Background(), sel)
	require.NoError(t, err)

	series := resp.Places["geoId/06"].Variables["Count_Person"]
	assert.Equal(t, "f3", series.Primary.FacetID)
	assert.Empty(t, series.Alternatives)
}

func TestServiceFetchObservationsCallerCancelled(t *testing.T) {
	svc := NewService(&fakeProvider{id: "base"}, nil, WithLogger(zap.NewNop()))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	sel := mustSelector(t, SelectorInput{VariableIDs: []string{"Count_Person"}, PlaceIDs: []string{"geoId/06"}})
	_, err := svc.FetchObservations(ctx, sel)
	assert.True(t, errors.Is(err, context.Canceled))
}

func TestServiceResolvePlacesFillsMissingNames(t *testing.T) {
	base := &fakeProvider{id: "base", places: map[string][]Place{
		"california": {{ID: "geoId/06", Name: "California", Types: []string{"State"}, LocatedIn: []string{"United States"}}},
	}}
	svc := NewService(base, nil)

	got, err := svc.ResolvePlaces(context.Background(), []string{"california", "atlantis"})
	require.NoError(t, err)
	assert.Equal(t, "geoId/06", got["california"][0].ID)
	assert.NotNil(t, got["atlantis"])
	assert.Empty(t, got["atlantis"])
}

func TestServiceChildPlaceTypes(t *testing.T) {
	svc := NewService(&fakeProvider{id: "base", childType: []string{"County", "State"}}, nil)

	got, err := svc.ChildPlaceTypes(context.Background(), "country/USA")
	require.NoError(t, err)
	assert.Equal(t, []string{"County", "State"}, got)

	got, err = NewService(&fakeProvider{id: "base"}, nil).ChildPlaceTypes(context.Background(), "geoId/06")
	require.NoError(t, err)
	assert.Equal(t, []string{}, got)
}
