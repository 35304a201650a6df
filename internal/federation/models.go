package federation

import "github.com/rotisserie/eris"

// Provider identifies one knowledge-graph backend taking part in the federation.
type Provider struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Endpoint    string `json:"endpoint"`
	APIKey      string `json:"-"`
	SearchIndex string `json:"searchIndex"`
}

// Place is a resolved place as returned by the base provider.
// LocatedIn is truncated at (and includes) the first country ancestor.
type Place struct {
	ID        string   `json:"placeDcid"`
	Name      string   `json:"placeName"`
	Types     []string `json:"placeTypes"`
	LocatedIn []string `json:"locatedIn"`
}

// VariableCandidate is one ranked match of a text query against a provider's index.
type VariableCandidate struct {
	VariableID string  `json:"variableDcid"`
	Score      float64 `json:"score"`
	ProviderID string  `json:"providerId"`
}

// VariableMatch is the outcome of resolving a query across all providers.
type VariableMatch struct {
	Query      string  `json:"query"`
	VariableID string  `json:"variableDcid,omitempty"`
	Score      float64 `json:"score,omitempty"`
	ProviderID string  `json:"providerId,omitempty"`
	Found      bool    `json:"found"`
}

// Err returns an error wrapping ErrNoMatch when nothing matched.
func (m VariableMatch) Err() error {
	if m.Found {
		return nil
	}
	return eris.Wrapf(ErrNoMatch, "variable %q", m.Query)
}

// Observation is a single dated value of a series.
type Observation struct {
	Date  string  `json:"date"`
	Value float64 `json:"value"`
}

// Facet is one data source's version of a series for a (place, variable) pair.
type Facet struct {
	FacetID           string        `json:"facetId"`
	ImportName        string        `json:"importName,omitempty"`
	ProvenanceURL     string        `json:"provenanceUrl,omitempty"`
	MeasurementMethod string        `json:"measurementMethod,omitempty"`
	ObservationPeriod string        `json:"observationPeriod,omitempty"`
	Unit              string        `json:"unit,omitempty"`
	ScalingFactor     string        `json:"scalingFactor,omitempty"`
	ProviderID        string        `json:"providerId"`
	EarliestDate      string        `json:"earliestDate"`
	LatestDate        string        `json:"latestDate"`
	ObservationCount  int           `json:"totalObservations"`
	Observations      []Observation `json:"observations,omitempty"`
}

// SeriesKey addresses one (place, variable) pair.
type SeriesKey struct {
	PlaceID    string
	VariableID string
}

// FacetSet is a single provider's observation result, keyed by (place, variable).
// Facets under each key keep the provider's own ordering.
type FacetSet map[SeriesKey][]Facet

// VariableSeries is the merged result for one (place, variable) pair.
type VariableSeries struct {
	VariableID   string  `json:"variableDcid"`
	Primary      Facet   `json:"primary"`
	Alternatives []Facet `json:"alternatives"`
}

// PlaceRecord groups merged series for a single place.
type PlaceRecord struct {
	PlaceID   string                    `json:"placeDcid"`
	Name      string                    `json:"placeName"`
	Variables map[string]VariableSeries `json:"variableSeries"`
}

// AggregatedResponse is the unified answer of an observation fetch.
type AggregatedResponse struct {
	Places map[string]*PlaceRecord `json:"placeData"`
}

// PlaceIDs returns the place identifiers present in the response.
func (r *AggregatedResponse) PlaceIDs() []string {
	ids := make([]string, 0, len(r.Places))
	for id := range r.Places {
		ids = append(ids, id)
	}
	return ids
}
