package datacommons

import (
	"context"
	"sort"

	"golang.org/x/sync/errgroup"
)

const (
	adminAreaClass  = "AdministrativeArea"
	catalogCacheKey = "catalog:" + adminAreaClass
	childLookupCap  = 4
)

// AdministrativeAreaTypes returns the subclasses of AdministrativeArea, using
// the cache when possible.
func (c *Client) AdministrativeAreaTypes(ctx context.Context) ([]string, error) {
	if c.cache != nil {
		if types, ok := c.cache.Get(catalogCacheKey); ok {
			return types, nil
		}
	}
	return c.RefreshAdministrativeAreaTypes(ctx)
}

// RefreshAdministrativeAreaTypes refetches the administrative area catalogue
// and stores it in the cache.
func (c *Client) RefreshAdministrativeAreaTypes(ctx context.Context) ([]string, error) {
	arcs, err := c.fetchArcs(ctx, []string{adminAreaClass}, "<-subClassOf")
	if err != nil {
		return nil, err
	}

	types := make([]string, 0, len(arcs[adminAreaClass]))
	for _, n := range arcs[adminAreaClass] {
		types = append(types, n.Dcid)
	}
	sort.Strings(types)

	if c.cache != nil {
		c.cache.Put(catalogCacheKey, types)
	}
	return types, nil
}

// ChildPlaceTypes lists administrative area types with at least one place
// contained in parentPlaceID.
func (c *Client) ChildPlaceTypes(ctx context.Context, parentPlaceID string) ([]string, error) {
	key := "children:" + parentPlaceID
	if c.cache != nil {
		if types, ok := c.cache.Get(key); ok {
			return types, nil
		}
	}

	catalog, err := c.AdministrativeAreaTypes(ctx)
	if err != nil {
		return nil, err
	}

	present := make([]bool, len(catalog))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(childLookupCap)
	for i, t := range catalog {
		g.Go(func() error {
			arcs, err := c.fetchArcs(gctx, []string{parentPlaceID}, "<-containedInPlace+{typeOf:"+t+"}")
			if err != nil {
				return err
			}
			present[i] = len(arcs[parentPlaceID]) > 0
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	types := []string{}
	for i, ok := range present {
		if ok {
			types = append(types, catalog[i])
		}
	}
	if c.cache != nil {
		c.cache.Put(key, types)
	}
	return types, nil
}
