package datacommons

import (
	"context"
	"slices"
	"sort"

	"github.com/rotisserie/eris"
	"golang.org/x/sync/errgroup"

	"github.com/i474232898/datacommons-federation/internal/federation"
)

const (
	countryType = "Country"
	// maxAncestorDepth bounds the upward containedInPlace walk.
	maxAncestorDepth = 10
)

type nodeRequest struct {
	Nodes    []string `json:"nodes"`
	Property string   `json:"property"`
}

type arcNode struct {
	Dcid  string   `json:"dcid"`
	Name  string   `json:"name"`
	Value string   `json:"value"`
	Types []string `json:"types"`
}

type nodeResponse struct {
	Data map[string]struct {
		Arcs map[string]struct {
			Nodes []arcNode `json:"nodes"`
		} `json:"arcs"`
	} `json:"data"`
}

type resolveResponse struct {
	Entities []struct {
		Node       string `json:"node"`
		Candidates []struct {
			Dcid         string `json:"dcid"`
			DominantType string `json:"dominantType"`
		} `json:"candidates"`
	} `json:"entities"`
}

// fetchArcs returns, per node, the nodes reached through property.
func (c *Client) fetchArcs(ctx context.Context, nodes []string, property string) (map[string][]arcNode, error) {
	var payload nodeResponse
	if err := c.postJSON(ctx, c.endpoint("/v2/node"), nodeRequest{Nodes: nodes, Property: property}, &payload); err != nil {
		return nil, c.unavailable(err, "node "+property)
	}

	out := make(map[string][]arcNode, len(payload.Data))
	for dcid, data := range payload.Data {
		props := make([]string, 0, len(data.Arcs))
		for p := range data.Arcs {
			props = append(props, p)
		}
		sort.Strings(props)
		for _, p := range props {
			out[dcid] = append(out[dcid], data.Arcs[p].Nodes...)
		}
	}
	return out, nil
}

// ResolvePlaceNames maps each free-text name to candidate places, with names,
// types and the ancestor chain up to the enclosing country.
func (c *Client) ResolvePlaceNames(ctx context.Context, names []string) (map[string][]federation.Place, error) {
	var payload resolveResponse
	req := nodeRequest{Nodes: names, Property: "<-description->dcid"}
	if err := c.postJSON(ctx, c.endpoint("/v2/resolve"), req, &payload); err != nil {
		return nil, c.unavailable(err, "resolve")
	}

	queryToIDs := make(map[string][]string, len(payload.Entities))
	var all []string
	for _, e := range payload.Entities {
		for _, cand := range e.Candidates {
			queryToIDs[e.Node] = append(queryToIDs[e.Node], cand.Dcid)
			if !slices.Contains(all, cand.Dcid) {
				all = append(all, cand.Dcid)
			}
		}
	}

	out := make(map[string][]federation.Place, len(names))
	if len(all) == 0 {
		return out, nil
	}

	var (
		placeNames map[string]string
		placeTypes map[string][]string
		ancestors  map[string][]string
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		placeNames, err = c.PlaceNames(gctx, all)
		return err
	})
	g.Go(func() (err error) {
		placeTypes, err = c.placeTypes(gctx, all)
		return err
	})
	g.Go(func() (err error) {
		ancestors, err = c.placeAncestors(gctx, all)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, eris.Wrap(err, "place metadata")
	}

	for query, ids := range queryToIDs {
		for _, id := range ids {
			out[query] = append(out[query], federation.Place{
				ID:        id,
				Name:      placeNames[id],
				Types:     nonNil(placeTypes[id]),
				LocatedIn: nonNil(ancestors[id]),
			})
		}
	}
	return out, nil
}

// PlaceNames looks up display names for placeIDs in one request.
func (c *Client) PlaceNames(ctx context.Context, placeIDs []string) (map[string]string, error) {
	arcs, err := c.fetchArcs(ctx, placeIDs, "->name")
	if err != nil {
		return nil, err
	}
	out := make(map[string]string, len(arcs))
	for dcid, nodes := range arcs {
		if len(nodes) > 0 {
			out[dcid] = nodes[0].Value
		}
	}
	return out, nil
}

func (c *Client) placeTypes(ctx context.Context, placeIDs []string) (map[string][]string, error) {
	arcs, err := c.fetchArcs(ctx, placeIDs, "->typeOf")
	if err != nil {
		return nil, err
	}
	out := make(map[string][]string, len(arcs))
	for dcid, nodes := range arcs {
		for _, n := range nodes {
			out[dcid] = append(out[dcid], n.Dcid)
		}
	}
	return out, nil
}

// placeAncestors walks containedInPlace upward, breadth first, collecting
// ancestor names until (and including) the first country.
func (c *Client) placeAncestors(ctx context.Context, placeIDs []string) (map[string][]string, error) {
	type walk struct {
		frontier []string
		seen     map[string]bool
		names    []string
		done     bool
	}

	walks := make(map[string]*walk, len(placeIDs))
	for _, id := range placeIDs {
		walks[id] = &walk{frontier: []string{id}, seen: map[string]bool{id: true}}
	}

	for depth := 0; depth < maxAncestorDepth; depth++ {
		var batch []string
		for _, w := range walks {
			if w.done {
				continue
			}
			for _, n := range w.frontier {
				if !slices.Contains(batch, n) {
					batch = append(batch, n)
				}
			}
		}
		if len(batch) == 0 {
			break
		}
		sort.Strings(batch)

		parents, err := c.fetchArcs(ctx, batch, "->containedInPlace")
		if err != nil {
			return nil, err
		}

		for _, w := range walks {
			if w.done {
				continue
			}
			var next []string
		frontier:
			for _, n := range w.frontier {
				for _, p := range parents[n] {
					if w.seen[p.Dcid] {
						continue
					}
					w.seen[p.Dcid] = true
					w.names = append(w.names, p.Name)
					if slices.Contains(p.Types, countryType) {
						w.done = true
						break frontier
					}
					next = append(next, p.Dcid)
				}
			}
			w.frontier = next
			if len(next) == 0 {
				w.done = true
			}
		}
	}

	out := make(map[string][]string, len(walks))
	for id, w := range walks {
		out[id] = w.names
	}
	return out, nil
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
