package builder

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/liveview/liveview/internal/model"
	"github.com/liveview/liveview/internal/store"
	"github.com/liveview/liveview/internal/store/memory"
)

func insertSynthetic(t *testing.T, st store.Events, ev model.MatchEvent) model.MatchEvent {
	t.Helper()
	ev.Synthetic = true
	inserted, err := st.Insert(context.Background(), &ev)
	require.NoError(t, err)
	require.True(t, inserted)
	return ev
}

func TestReconcileSupersedesMatchingGoal(t *testing.T) {
	st := memory.New()
	r := NewReconciler(st.Events)
	matchID := uuid.New()
	teamID := uuid.New()

	synth := insertSynthetic(t, st.Events, model.MatchEvent{
		MatchID:   matchID,
		Type:      model.EventGoal,
		ScoreHome: model.IntPtr(1),
		ScoreAway: model.IntPtr(0),
		TeamID:    model.UUIDPtr(teamID),
	})

	real := model.MatchEvent{
		MatchID:        matchID,
		Type:           model.EventGoal,
		ScoreHome:      model.IntPtr(1),
		ScoreAway:      model.IntPtr(0),
		TeamID:         model.UUIDPtr(teamID),
		SourceProvider: model.ProviderSportradar,
	}
	n, err := r.Reconcile(context.Background(), matchID, []model.MatchEvent{real})
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	remaining, err := st.Events.RecentSynthetic(context.Background(), matchID, 50)
	require.NoError(t, err)
	assert.Empty(t, remaining, "superseded synthetic %s should be gone", synth.ID)
}

func TestReconcileScoreMismatchKeepsSynthetic(t *testing.T) {
	st := memory.New()
	r := NewReconciler(st.Events)
	matchID := uuid.New()

	insertSynthetic(t, st.Events, model.MatchEvent{
		MatchID:   matchID,
		Type:      model.EventGoal,
		ScoreHome: model.IntPtr(2),
		ScoreAway: model.IntPtr(0),
	})

	real := model.MatchEvent{
		MatchID:   matchID,
		Type:      model.EventGoal,
		ScoreHome: model.IntPtr(1),
		ScoreAway: model.IntPtr(0),
	}
	n, err := r.Reconcile(context.Background(), matchID, []model.MatchEvent{real})
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestReconcilePhaseEventMinuteTolerance(t *testing.T) {
	st := memory.New()
	r := NewReconciler(st.Events)
	matchID := uuid.New()

	insertSynthetic(t, st.Events, model.MatchEvent{
		MatchID: matchID,
		Type:    model.EventPeriodEnd,
		Minute:  model.IntPtr(45),
	})

	far := model.MatchEvent{MatchID: matchID, Type: model.EventPeriodEnd, Minute: model.IntPtr(60)}
	n, err := r.Reconcile(context.Background(), matchID, []model.MatchEvent{far})
	require.NoError(t, err)
	assert.Zero(t, n, "15 minutes apart is a different period boundary")

	near := model.MatchEvent{MatchID: matchID, Type: model.EventPeriodEnd, Minute: model.IntPtr(47)}
	n, err = r.Reconcile(context.Background(), matchID, []model.MatchEvent{near})
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestReconcileOneSyntheticPerRealEvent(t *testing.T) {
	st := memory.New()
	r := NewReconciler(st.Events)
	matchID := uuid.New()

	for i := 0; i < 2; i++ {
		insertSynthetic(t, st.Events, model.MatchEvent{
			MatchID:   matchID,
			Type:      model.EventGoal,
			ScoreHome: model.IntPtr(1),
			ScoreAway: model.IntPtr(0),
		})
	}

	real := model.MatchEvent{
		MatchID:   matchID,
		Type:      model.EventGoal,
		ScoreHome: model.IntPtr(1),
		ScoreAway: model.IntPtr(0),
	}
	n, err := r.Reconcile(context.Background(), matchID, []model.MatchEvent{real})
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	remaining, err := st.Events.RecentSynthetic(context.Background(), matchID, 50)
	require.NoError(t, err)
	assert.Len(t, remaining, 1)
}

func TestReconcileTypeMismatch(t *testing.T) {
	st := memory.New()
	r := NewReconciler(st.Events)
	matchID := uuid.New()

	insertSynthetic(t, st.Events, model.MatchEvent{
		MatchID:   matchID,
		Type:      model.EventGoal,
		ScoreHome: model.IntPtr(1),
		ScoreAway: model.IntPtr(0),
	})

	real := model.MatchEvent{MatchID: matchID, Type: model.EventYellowCard}
	n, err := r.Reconcile(context.Background(), matchID, []model.MatchEvent{real})
	require.NoError(t, err)
	assert.Zero(t, n)
}
