package ws

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/liveview/liveview/internal/config"
	"github.com/liveview/liveview/internal/model"
)

func TestValidTiers(t *testing.T) {
	assert.Equal(t, []int{0, 2}, validTiers([]int{0, 2}, []int{0}))
	assert.Equal(t, []int{1}, validTiers([]int{-1, 1, 7}, []int{0}))
	assert.Equal(t, []int{0}, validTiers(nil, []int{0}))
	assert.Equal(t, []int{0, 1, 2}, validTiers([]int{9}, []int{0, 1, 2}))
}

func TestFanoutChannelRoundTrip(t *testing.T) {
	matchID := uuid.New()
	channel := fanoutChannel(matchID, 1)
	assert.Equal(t, "fanout:match:"+matchID.String()+":tier:1", channel)

	gotMatch, gotTier, ok := parseChannel(channel)
	require.True(t, ok)
	assert.Equal(t, matchID.String(), gotMatch)
	assert.Equal(t, 1, gotTier)
}

func TestParseChannelRejectsForeignKeys(t *testing.T) {
	for _, channel := range []string{
		"",
		"state:scoreboard:abc",
		"fanout:match:abc",
		"fanout:match:abc:tier:x",
		"presence:fanout:match:abc:tier:0",
	} {
		_, _, ok := parseChannel(channel)
		assert.False(t, ok, "channel %q", channel)
	}
}

func TestAttachEnforcesSubscriptionLimit(t *testing.T) {
	g := NewGateway(&config.Config{WSMaxSubscriptions: 2}, nil)
	c := &client{subscriptions: map[string]bool{}}
	matchID := uuid.New()

	added, subscribed, err := g.attach(c, []string{
		fanoutChannel(matchID, 0),
		fanoutChannel(matchID, 1),
	})
	require.NoError(t, err)
	assert.Len(t, added, 2)
	assert.Len(t, subscribed, 2)

	_, _, err = g.attach(c, []string{fanoutChannel(matchID, 2)})
	assert.ErrorIs(t, err, ErrSubscriptionLimit)
}

func TestTierOf(t *testing.T) {
	assert.Equal(t, model.TierScoreboard, tierOf(0))
	assert.Equal(t, model.TierEvents, tierOf(1))
	assert.Equal(t, model.TierStats, tierOf(2))
	assert.Equal(t, model.TierScoreboard, tierOf(99))
}
