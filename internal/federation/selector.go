package federation

import (
	"regexp"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/rotisserie/eris"
)

const (
	// DateAll requests every available date.
	DateAll = "all"
	// DateLatest requests only the most recent observation of each facet.
	DateLatest = "latest"
)

var (
	validate    = validator.New()
	datePattern = regexp.MustCompile(`^\d{4}(-\d{2}(-\d{2})?)?$`)
)

// SelectorInput is the raw, unvalidated form of an observation query.
type SelectorInput struct {
	VariableIDs    []string `json:"variableDcids" validate:"required,min=1,dive,required"`
	PlaceIDs       []string `json:"placeDcids" validate:"omitempty,dive,required"`
	ParentPlaceID  string   `json:"parentPlaceDcid"`
	ChildPlaceType string   `json:"childPlaceTypeDcid"`
	FacetIDs       []string `json:"facetIds" validate:"omitempty,dive,required"`
	Date           string   `json:"date"`
}

// ObservationSelector is a validated observation query. Exactly one place
// selection mode is set: PlaceIDs, or ParentPlaceID with ChildPlaceType.
type ObservationSelector struct {
	VariableIDs    []string
	PlaceIDs       []string
	ParentPlaceID  string
	ChildPlaceType string
	FacetIDs       []string
	Date           string
}

// NewObservationSelector validates in and returns a selector, or an error
// wrapping ErrInvalidSelector.
func NewObservationSelector(in SelectorInput) (ObservationSelector, error) {
	in = in.trimmed()
	if err := validate.Struct(in); err != nil {
		return ObservationSelector{}, eris.Wrap(ErrInvalidSelector, err.Error())
	}

	hasPlaces := len(in.PlaceIDs) > 0
	hasPair := in.ParentPlaceID != "" && in.ChildPlaceType != ""
	if hasPlaces == hasPair {
		return ObservationSelector{}, eris.Wrap(ErrInvalidSelector,
			"supply either place dcids or a complete (parent place, child place type) pair")
	}

	date := strings.ToLower(strings.TrimSpace(in.Date))
	switch {
	case date == "":
		date = DateAll
	case date == DateAll, date == DateLatest:
	case validDate(date):
	default:
		return ObservationSelector{}, eris.Wrapf(ErrInvalidSelector, "unsupported date %q", in.Date)
	}

	sel := ObservationSelector{
		VariableIDs: append([]string(nil), in.VariableIDs...),
		FacetIDs:    append([]string(nil), in.FacetIDs...),
		Date:        date,
	}
	if hasPlaces {
		sel.PlaceIDs = append([]string(nil), in.PlaceIDs...)
	} else {
		sel.ParentPlaceID = in.ParentPlaceID
		sel.ChildPlaceType = in.ChildPlaceType
	}
	return sel, nil
}

// trimmed returns a copy of in with surrounding whitespace removed from every id.
// Blank ids stay in place so validation rejects them.
func (in SelectorInput) trimmed() SelectorInput {
	trimAll := func(ids []string) []string {
		if ids == nil {
			return nil
		}
		out := make([]string, len(ids))
		for i, id := range ids {
			out[i] = strings.TrimSpace(id)
		}
		return out
	}
	in.VariableIDs = trimAll(in.VariableIDs)
	in.PlaceIDs = trimAll(in.PlaceIDs)
	in.FacetIDs = trimAll(in.FacetIDs)
	in.ParentPlaceID = strings.TrimSpace(in.ParentPlaceID)
	in.ChildPlaceType = strings.TrimSpace(in.ChildPlaceType)
	return in
}

// validDate accepts YYYY, YYYY-MM and YYYY-MM-DD naming a real calendar date.
func validDate(date string) bool {
	if !datePattern.MatchString(date) {
		return false
	}
	layout := "2006-01-02"[:len(date)]
	_, err := time.Parse(layout, date)
	return err == nil
}

// ByParent reports whether the selector addresses places as children of a parent.
func (s ObservationSelector) ByParent() bool {
	return s.ParentPlaceID != ""
}

// AllowsFacet reports whether id passes the facet allowlist. An empty allowlist allows everything.
func (s ObservationSelector) AllowsFacet(id string) bool {
	if len(s.FacetIDs) == 0 {
		return true
	}
	for _, f := range s.FacetIDs {
		if f == id {
			return true
		}
	}
	return false
}
