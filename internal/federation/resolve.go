package federation

const (
	// thresholdSingle applies when at most one custom provider is configured.
	thresholdSingle = 0.70
	// thresholdFederated applies when two or more custom providers are configured.
	thresholdFederated = 0.80
)

// CustomThreshold returns the score a custom candidate must strictly exceed
// to be preferred over the base provider.
func CustomThreshold(customCount int) float64 {
	if customCount >= 2 {
		return thresholdFederated
	}
	return thresholdSingle
}

// SelectVariable picks one candidate from per-provider rankings.
//
// custom holds each custom provider's candidates in registration order. The
// highest-scoring custom candidate strictly above threshold wins; equal scores
// go to the earlier provider, then to the lower variable id. Without such a
// candidate the base provider's top candidate is used with no threshold.
// The boolean is false when nothing matched.
func SelectVariable(base []VariableCandidate, custom [][]VariableCandidate, threshold float64) (VariableCandidate, bool) {
	var (
		best     VariableCandidate
		bestProv = -1
	)
	for i, cands := range custom {
		for _, c := range cands {
			if c.Score <= threshold {
				continue
			}
			switch {
			case bestProv < 0, c.Score > best.Score:
				best, bestProv = c, i
			case c.Score == best.Score && i == bestProv && c.VariableID < best.VariableID:
				best = c
			}
		}
	}
	if bestProv >= 0 {
		return best, true
	}

	if len(base) == 0 {
		return VariableCandidate{}, false
	}
	return SortCandidates(base, 1)[0], true
}
