package datacommons

import (
	"context"
	"fmt"

	"github.com/i474232898/datacommons-federation/internal/federation"
)

type dcidList struct {
	Dcids []string `json:"dcids,omitempty"`
}

type entitySelector struct {
	Dcids      []string `json:"dcids,omitempty"`
	Expression string   `json:"expression,omitempty"`
}

type observationFilter struct {
	FacetIDs []string `json:"facet_ids,omitempty"`
}

type observationRequest struct {
	Date     string             `json:"date"`
	Variable dcidList           `json:"variable"`
	Entity   entitySelector     `json:"entity"`
	Select   []string           `json:"select"`
	Filter   *observationFilter `json:"filter,omitempty"`
}

type orderedFacet struct {
	FacetID      string                   `json:"facetId"`
	Observations []federation.Observation `json:"observations"`
	ObsCount     int                      `json:"obsCount"`
	EarliestDate string                   `json:"earliestDate"`
	LatestDate   string                   `json:"latestDate"`
}

type facetMetadata struct {
	ImportName        string `json:"importName"`
	ProvenanceURL     string `json:"provenanceUrl"`
	MeasurementMethod string `json:"measurementMethod"`
	ObservationPeriod string `json:"observationPeriod"`
	Unit              string `json:"unit"`
	ScalingFactor     string `json:"scalingFactor"`
}

type observationResponse struct {
	ByVariable map[string]struct {
		ByEntity map[string]struct {
			OrderedFacets []orderedFacet `json:"orderedFacets"`
		} `json:"byEntity"`
	} `json:"byVariable"`
	Facets map[string]facetMetadata `json:"facets"`
}

// FetchObservations returns every facet the instance knows for the selected
// (place, variable) pairs. Only transport failures are errors.
func (c *Client) FetchObservations(ctx context.Context, sel federation.ObservationSelector) (federation.FacetSet, error) {
	req := observationRequest{
		Date:     apiDate(sel.Date),
		Variable: dcidList{Dcids: sel.VariableIDs},
		Select:   []string{"date", "variable", "entity", "value"},
	}
	if sel.ByParent() {
		req.Entity.Expression = containedInExpression(sel.ParentPlaceID, sel.ChildPlaceType)
	} else {
		req.Entity.Dcids = sel.PlaceIDs
	}
	if len(sel.FacetIDs) > 0 {
		req.Filter = &observationFilter{FacetIDs: sel.FacetIDs}
	}

	var payload observationResponse
	if err := c.postJSON(ctx, c.endpoint("/v2/observation"), req, &payload); err != nil {
		return nil, c.unavailable(err, "fetch observations")
	}
	return c.toFacetSet(payload), nil
}

func (c *Client) toFacetSet(payload observationResponse) federation.FacetSet {
	out := make(federation.FacetSet)
	for variable, byVar := range payload.ByVariable {
		for place, byEntity := range byVar.ByEntity {
			if len(byEntity.OrderedFacets) == 0 {
				continue
			}
			facets := make([]federation.Facet, 0, len(byEntity.OrderedFacets))
			for _, of := range byEntity.OrderedFacets {
				meta := payload.Facets[of.FacetID]
				facets = append(facets, federation.Facet{
					FacetID:           of.FacetID,
					ImportName:        meta.ImportName,
					ProvenanceURL:     meta.ProvenanceURL,
					MeasurementMethod: meta.MeasurementMethod,
					ObservationPeriod: meta.ObservationPeriod,
					Unit:              meta.Unit,
					ScalingFactor:     meta.ScalingFactor,
					ProviderID:        c.provider.ID,
					EarliestDate:      of.EarliestDate,
					LatestDate:        of.LatestDate,
					ObservationCount:  of.ObsCount,
					Observations:      of.Observations,
				})
			}
			out[federation.SeriesKey{PlaceID: place, VariableID: variable}] = facets
		}
	}
	return out
}

// apiDate maps selector dates onto the API's conventions.
func apiDate(date string) string {
	switch date {
	case "", federation.DateAll:
		return ""
	case federation.DateLatest:
		return "LATEST"
	default:
		return date
	}
}

func containedInExpression(parent, childType string) string {
	return fmt.Sprintf("%s<-containedInPlace+{typeOf:%s}", parent, childType)
}
