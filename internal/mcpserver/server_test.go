package mcpserver

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/i474232898/datacommons-federation/internal/federation"
)

type stubProvider struct {
	id         string
	candidates []federation.VariableCandidate
	facets     federation.FacetSet
	places     map[string][]federation.Place
}

func (s *stubProvider) Provider() federation.Provider { return federation.Provider{ID: s.id} }

func (s *stubProvider) RankCandidates(context.Context, string) []federation.VariableCandidate {
	return s.candidates
}

func (s *stubProvider) FetchObservations(context.Context, federation.ObservationSelector) (federation.FacetSet, error) {
	return s.facets, nil
}

func (s *stubProvider) ResolvePlaceNames(context.Context, []string) (map[string][]federation.Place, error) {
	return s.places, nil
}

func (s *stubProvider) PlaceNames(context.Context, []string) (map[string]string, error) {
	return map[string]string{}, nil
}

func (s *stubProvider) ChildPlaceTypes(context.Context, string) ([]string, error) {
	return []string{"County", "State"}, nil
}

func newServer(base *stubProvider, custom ...federation.ProviderClient) *Server {
	svc := federation.NewService(base, custom, federation.WithLogger(zap.NewNop()))
	return New(svc, "test", zap.NewNop())
}

func callRequest(name string, args map[string]any) mcp.CallToolRequest {
	req := mcp.CallToolRequest{}
	req.Params.Name = name
	req.Params.Arguments = args
	return req
}

func resultText(t *testing.T, res *mcp.CallToolResult) string {
	t.Helper()
	require.NotNil(t, res)
	require.NotEmpty(t, res.Content)
	text, ok := res.Content[0].(mcp.TextContent)
	require.True(t, ok, "expected text content, got %T", res.Content[0])
	return text.Text
}

func TestFetchObservationsTool(t *testing.T) {
	key := federation.SeriesKey{PlaceID: "geoId/06", VariableID: "Count_Person"}
	base := &stubProvider{id: "base", facets: federation.FacetSet{key: {{FacetID: "f1", ObservationCount: 120}}}}
	custom := &stubProvider{id: "custom", facets: federation.FacetSet{key: {{FacetID: "f1"}, {FacetID: "f2", ObservationCount: 50}}}}
	s := newServer(base, custom)

	res, err := s.handleObservations(context.Background(), callRequest("fetch_observations", map[string]any{
		"variable_dcids": []any{"Count_Person"},
		"place_dcids":    []any{"geoId/06"},
	}))
	require.NoError(t, err)
	require.False(t, res.IsError, resultText(t, res))

	var out federation.AggregatedResponse
	require.NoError(t, json.Unmarshal([]byte(resultText(t, res)), &out))
	series := out.Places["geoId/06"].Variables["Count_Person"]
	assert.Equal(t, "f2", series.Primary.FacetID)
	require.Len(t, series.Alternatives, 1)
	assert.Equal(t, "f1", series.Alternatives[0].FacetID)
}

func TestFetchObservationsToolFacetOverride(t *testing.T) {
	key := federation.SeriesKey{PlaceID: "geoId/06", VariableID: "Count_Person"}
	base := &stubProvider{id: "base", facets: federation.FacetSet{key: {{FacetID: "f1"}, {FacetID: "f3"}}}}
	s := newServer(base)

	res, err := s.handleObservations(context.Background(), callRequest("fetch_observations", map[string]any{
		"variable_dcids":    []any{"Count_Person"},
		"place_dcids":       []any{"geoId/06"},
		"facet_id_override": "f3",
	}))
	require.NoError(t, err)

	var out federation.AggregatedResponse
	require.NoError(t, json.Unmarshal([]byte(resultText(t, res)), &out))
	series := out.Places["geoId/06"].Variables["Count_Person"]
	assert.Equal(t, "f3", series.Primary.FacetID)
	assert.Empty(t, series.Alternatives)
}

func TestFetchObservationsToolRejectsAmbiguousSelector(t *testing.T) {
	s := newServer(&stubProvider{id: "base"})

	res, err := s.handleObservations(context.Background(), callRequest("fetch_observations", map[string]any{
		"variable_dcids":        []any{"Count_Person"},
		"place_dcids":           []any{"geoId/06"},
		"parent_place_dcid":     "country/USA",
		"child_place_type_dcid": "State",
	}))
	require.NoError(t, err)
	assert.True(t, res.IsError)
	assert.Contains(t, resultText(t, res), "invalid observation selector")
}

func TestFetchStatVarsTool(t *testing.T) {
	base := &stubProvider{id: "base", candidates: []federation.VariableCandidate{{VariableID: "Count_Person", Score: 0.65}}}
	s := newServer(base)

	res, err := s.handleStatVars(context.Background(), callRequest("fetch_stat_vars", map[string]any{
		"stat_var_descs": []any{"population"},
	}))
	require.NoError(t, err)
	assert.Contains(t, resultText(t, res), `"variableDcid":"Count_Person"`)

	res, err = s.handleStatVars(context.Background(), callRequest("fetch_stat_vars", map[string]any{}))
	require.NoError(t, err)
	assert.True(t, res.IsError)
}

func TestFetchPlaceTool(t *testing.T) {
	base := &stubProvider{id: "base", places: map[string][]federation.Place{
		"California": {{ID: "geoId/06", Name: "California", Types: []string{"State"}, LocatedIn: []string{"United States"}}},
	}}
	s := newServer(base)

	res, err := s.handleFetchPlace(context.Background(), callRequest("fetch_place_dcid", map[string]any{"place_name": "California"}))
	require.NoError(t, err)
	assert.Contains(t, resultText(t, res), "geoId/06")

	res, err = s.handleFetchPlace(context.Background(), callRequest("fetch_place_dcid", map[string]any{"place_name": "Atlantis"}))
	require.NoError(t, err)
	assert.False(t, res.IsError)
	assert.Contains(t, resultText(t, res), "No place found")

	res, err = s.handleFetchPlace(context.Background(), callRequest("fetch_place_dcid", map[string]any{}))
	require.NoError(t, err)
	assert.True(t, res.IsError)
}

func TestChildPlaceTypesTool(t *testing.T) {
	s := newServer(&stubProvider{id: "base"})

	res, err := s.handleChildPlaceTypes(context.Background(), callRequest("fetch_child_place_type_dcids", map[string]any{"place_dcid": "country/USA"}))
	require.NoError(t, err)
	assert.Contains(t, resultText(t, res), `"childPlaceTypes":["County","State"]`)
}
