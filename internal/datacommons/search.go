package datacommons

import (
	"context"
	"net/url"
	"strings"

	"go.uber.org/zap"

	"github.com/i474232898/datacommons-federation/internal/federation"
)

type searchVectorRequest struct {
	Queries []string `json:"queries"`
}

type searchVectorResponse struct {
	QueryResults map[string]struct {
		SV          []string  `json:"SV"`
		CosineScore []float64 `json:"CosineScore"`
	} `json:"queryResults"`
}

// RankCandidates asks the instance's embeddings index for variables matching
// query. Failures are logged and yield no candidates.
func (c *Client) RankCandidates(ctx context.Context, query string) []federation.VariableCandidate {
	values := url.Values{}
	values.Set("idx", c.provider.SearchIndex)
	values.Set("skip_topics", "true")
	u := strings.TrimRight(c.provider.Endpoint, "/") + "/api/nl/search-vector?" + values.Encode()

	var payload searchVectorResponse
	if err := c.postJSON(ctx, u, searchVectorRequest{Queries: []string{query}}, &payload); err != nil {
		c.log.Warn("variable search failed", zap.String("query", query), zap.Error(err))
		return nil
	}

	res, ok := payload.QueryResults[query]
	if !ok || len(res.SV) == 0 {
		return nil
	}
	if len(res.SV) != len(res.CosineScore) {
		c.log.Warn("variable search returned mismatched result lists",
			zap.String("query", query),
			zap.Int("variables", len(res.SV)),
			zap.Int("scores", len(res.CosineScore)),
		)
		return nil
	}

	cands := make([]federation.VariableCandidate, 0, len(res.SV))
	for i, sv := range res.SV {
		cands = append(cands, federation.VariableCandidate{
			VariableID: sv,
			Score:      res.CosineScore[i],
			ProviderID: c.provider.ID,
		})
	}
	return federation.SortCandidates(cands, federation.MaxCandidates)
}
