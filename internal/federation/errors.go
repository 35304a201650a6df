package federation

import "github.com/rotisserie/eris"

var (
	// ErrInvalidSelector is returned when an observation selector is malformed or ambiguous.
	ErrInvalidSelector = eris.New("invalid observation selector")

	// ErrProviderUnavailable is returned by a provider client that cannot reach its endpoint.
	ErrProviderUnavailable = eris.New("provider unavailable")

	// ErrNoMatch signals that a place or variable lookup found nothing.
	ErrNoMatch = eris.New("no match")

	// ErrMergeConflict is reserved for stricter consistency policies; the additive merge never returns it.
	ErrMergeConflict = eris.New("merge conflict")
)
