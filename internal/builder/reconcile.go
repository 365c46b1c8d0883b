package builder

import (
	"context"

	"github.com/google/uuid"

	"github.com/liveview/liveview/internal/model"
	"github.com/liveview/liveview/internal/store"
	"github.com/liveview/liveview/internal/telemetry"
)

// recentSyntheticLimit bounds how far back reconciliation looks; older
// synthetic rows are part of history by then.
const recentSyntheticLimit = 50

// phaseEventMinuteTolerance is the minute proximity for treating a real
// phase event as the same occurrence as a synthetic one.
const phaseEventMinuteTolerance = 5

// Reconciler retires synthetic events once a real provider event
// describes the same occurrence. Real events always win; the synthetic
// row is hard-deleted so the timeline never shows both.
type Reconciler struct {
	events store.Events
}

func NewReconciler(events store.Events) *Reconciler {
	return &Reconciler{events: events}
}

// Reconcile checks the arriving real events against the match's recent
// synthetic rows and deletes the superseded ones. Returns how many
// were removed.
func (r *Reconciler) Reconcile(ctx context.Context, matchID uuid.UUID, realEvents []model.MatchEvent) (int, error) {
	if len(realEvents) == 0 {
		return 0, nil
	}

	synthetic, err := r.events.RecentSynthetic(ctx, matchID, recentSyntheticLimit)
	if err != nil {
		return 0, err
	}
	if len(synthetic) == 0 {
		return 0, nil
	}

	superseded := 0
	claimed := map[uuid.UUID]bool{}
	for _, real := range realEvents {
		for _, synth := range synthetic {
			if claimed[synth.ID] || !supersedes(real, synth) {
				continue
			}
			if err := r.events.Delete(ctx, synth.ID); err != nil {
				telemetry.Warnf("builder: delete superseded synthetic %s: %v", synth.ID, err)
				continue
			}
			claimed[synth.ID] = true
			superseded++
			telemetry.Metrics.SyntheticSuperseded.Inc()
			telemetry.Infof("builder: synthetic %s superseded by real %s event from %s",
				synth.ID, real.Type, real.SourceProvider)
			// each real event supersedes at most one synthetic
			break
		}
	}
	return superseded, nil
}

// supersedes reports whether a real event describes the same occurrence
// as a synthetic one.
func supersedes(real, synth model.MatchEvent) bool {
	if real.Type != synth.Type {
		return false
	}

	switch real.Type {
	case model.EventGoal, model.EventBasket, model.EventRun:
		if !intPtrEqual(real.ScoreHome, synth.ScoreHome) || !intPtrEqual(real.ScoreAway, synth.ScoreAway) {
			return false
		}
		if real.TeamID != nil && synth.TeamID != nil && *real.TeamID != *synth.TeamID {
			return false
		}
	case model.EventMatchStart, model.EventMatchEnd, model.EventPeriodStart, model.EventPeriodEnd:
		if real.Minute != nil && synth.Minute != nil {
			diff := *real.Minute - *synth.Minute
			if diff < 0 {
				diff = -diff
			}
			if diff > phaseEventMinuteTolerance {
				return false
			}
		}
	}
	return true
}

func intPtrEqual(a, b *int) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}
