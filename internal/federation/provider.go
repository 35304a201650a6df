package federation

import (
	"context"
	"sort"
)

// MaxCandidates is how many ranked candidates a provider returns per query.
const MaxCandidates = 5

// ProviderClient abstracts one knowledge-graph endpoint (base or custom).
type ProviderClient interface {
	Provider() Provider

	// RankCandidates is best-effort: failures yield an empty slice, never an error.
	RankCandidates(ctx context.Context, query string) []VariableCandidate

	// FetchObservations returns ErrProviderUnavailable only when the endpoint
	// cannot be reached. Empty data for a valid query is not an error.
	FetchObservations(ctx context.Context, sel ObservationSelector) (FacetSet, error)
}

// PlaceDirectory is the place-identity surface owned by the base provider.
type PlaceDirectory interface {
	ResolvePlaceNames(ctx context.Context, names []string) (map[string][]Place, error)
	PlaceNames(ctx context.Context, placeIDs []string) (map[string]string, error)
	ChildPlaceTypes(ctx context.Context, parentPlaceID string) ([]string, error)
}

// BaseProvider is the authoritative provider: it ranks, fetches and owns place identity.
type BaseProvider interface {
	ProviderClient
	PlaceDirectory
}

// SortCandidates orders candidates by descending score, then ascending
// variable id, and truncates the result to limit entries (limit <= 0 keeps all).
// The input slice is not modified.
func SortCandidates(cands []VariableCandidate, limit int) []VariableCandidate {
	out := append([]VariableCandidate(nil), cands...)
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		return out[i].VariableID < out[j].VariableID
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}
