// Package verifier cross-checks canonical state against independent
// sources, scores agreement, applies high-confidence corrections and
// flags disputes for review.
package verifier

import (
	"github.com/liveview/liveview/internal/model"
	"github.com/liveview/liveview/internal/provider"
)

// Disposition labels the outcome of one verification pass.
type Disposition string

const (
	DispositionHigh     Disposition = "HIGH"
	DispositionMedium   Disposition = "MEDIUM"
	DispositionDisputed Disposition = "DISPUTED"
)

// statesAgree compares canonical state against one verified source.
// Phases compare by family, not exact value: independent sources report
// phase at different granularity.
func statesAgree(current model.Scoreboard, verified provider.ScoreboardData) bool {
	return current.Score.Home == verified.HomeScore &&
		current.Score.Away == verified.AwayScore &&
		model.PhaseEquivalent(current.Phase, verified.Phase)
}

// ComputeConfidence arbitrates between canonical state and the verified
// source states. Two or more agreeing sources score HIGH, exactly one
// MEDIUM (could be lag), none DISPUTED. The recommended state is the
// first agreeing source, or the freshest one when all disagree.
func ComputeConfidence(current model.Scoreboard, verified []provider.ScoreboardData) (float64, Disposition, *provider.ScoreboardData) {
	if len(verified) == 0 {
		return 0, DispositionDisputed, nil
	}

	var matching []provider.ScoreboardData
	for _, v := range verified {
		if statesAgree(current, v) {
			matching = append(matching, v)
		}
	}

	switch {
	case len(matching) >= 2:
		return 0.9, DispositionHigh, &matching[0]
	case len(matching) == 1:
		return 0.6, DispositionMedium, &matching[0]
	}

	freshest := verified[0]
	for _, v := range verified[1:] {
		if v.FetchedAt.After(freshest.FetchedAt) {
			freshest = v
		}
	}
	return 0.3, DispositionDisputed, &freshest
}
