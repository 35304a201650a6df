package federation

import "sort"

// Contribution is one provider's facets for a single observation request.
type Contribution struct {
	ProviderID string
	Facets     FacetSet
}

// MergeFacets combines per-provider facets into one AggregatedResponse.
//
// For every (place, variable) key, custom facets come first in provider order,
// skipping identifiers the base provider also reports for that key; base facets
// follow. Facets rejected by allow are dropped for every provider. The first
// surviving facet becomes primary and the rest alternatives, deduplicated by
// facet id. Keys without surviving facets are omitted. A nil allow keeps all.
func MergeFacets(base Contribution, custom []Contribution, allow func(facetID string) bool) *AggregatedResponse {
	if allow == nil {
		allow = func(string) bool { return true }
	}

	resp := &AggregatedResponse{Places: make(map[string]*PlaceRecord)}

	for _, key := range unionKeys(base, custom) {
		baseFacets := filterFacets(base.Facets[key], base.ProviderID, allow)
		baseIDs := make(map[string]struct{}, len(baseFacets))
		for _, f := range baseFacets {
			baseIDs[f.FacetID] = struct{}{}
		}

		seen := make(map[string]struct{})
		var merged []Facet
		for _, c := range custom {
			for _, f := range filterFacets(c.Facets[key], c.ProviderID, allow) {
				if _, dup := baseIDs[f.FacetID]; dup {
					continue
				}
				if _, dup := seen[f.FacetID]; dup {
					continue
				}
				seen[f.FacetID] = struct{}{}
				merged = append(merged, f)
			}
		}
		for _, f := range baseFacets {
			if _, dup := seen[f.FacetID]; dup {
				continue
			}
			seen[f.FacetID] = struct{}{}
			merged = append(merged, f)
		}

		if len(merged) == 0 {
			continue
		}

		rec, ok := resp.Places[key.PlaceID]
		if !ok {
			rec = &PlaceRecord{PlaceID: key.PlaceID, Variables: make(map[string]VariableSeries)}
			resp.Places[key.PlaceID] = rec
		}
		rec.Variables[key.VariableID] = VariableSeries{
			VariableID:   key.VariableID,
			Primary:      merged[0],
			Alternatives: append([]Facet{}, merged[1:]...),
		}
	}

	return resp
}

// filterFacets applies the allowlist and stamps the owning provider.
func filterFacets(facets []Facet, providerID string, allow func(string) bool) []Facet {
	out := make([]Facet, 0, len(facets))
	for _, f := range facets {
		if !allow(f.FacetID) {
			continue
		}
		if f.ProviderID == "" {
			f.ProviderID = providerID
		}
		out = append(out, f)
	}
	return out
}

// unionKeys returns every key present in any contribution, sorted by place then variable.
func unionKeys(base Contribution, custom []Contribution) []SeriesKey {
	set := make(map[SeriesKey]struct{}, len(base.Facets))
	for k := range base.Facets {
		set[k] = struct{}{}
	}
	for _, c := range custom {
		for k := range c.Facets {
			set[k] = struct{}{}
		}
	}

	keys := make([]SeriesKey, 0, len(set))
	for k := range set {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].PlaceID != keys[j].PlaceID {
			return keys[i].PlaceID < keys[j].PlaceID
		}
		return keys[i].VariableID < keys[j].VariableID
	})
	return keys
}
