package model

// Sport identifies one of the supported sports. The set is closed.
type Sport string

const (
	SportSoccer     Sport = "soccer"
	SportBasketball Sport = "basketball"
	SportHockey     Sport = "hockey"
	SportBaseball   Sport = "baseball"
	SportFootball   Sport = "football"
)

// Sports lists every supported sport in a stable order.
var Sports = []Sport{SportSoccer, SportBasketball, SportHockey, SportBaseball, SportFootball}

func (s Sport) Valid() bool {
	switch s {
	case SportSoccer, SportBasketball, SportHockey, SportBaseball, SportFootball:
		return true
	}
	return false
}

// MatchPhase is the canonical lifecycle phase of a match.
// Three disjoint families: pre-live, live (live_* plus break/suspended),
// and terminal (finished/postponed/cancelled).
type MatchPhase string

const (
	PhaseScheduled      MatchPhase = "scheduled"
	PhasePreMatch       MatchPhase = "pre_match"
	PhaseLiveFirstHalf  MatchPhase = "live_first_half"
	PhaseLiveHalftime   MatchPhase = "live_halftime"
	PhaseLiveSecondHalf MatchPhase = "live_second_half"
	PhaseLiveExtraTime  MatchPhase = "live_extra_time"
	PhaseLivePenalties  MatchPhase = "live_penalties"
	PhaseLiveQ1         MatchPhase = "live_q1"
	PhaseLiveQ2         MatchPhase = "live_q2"
	PhaseLiveQ3         MatchPhase = "live_q3"
	PhaseLiveQ4         MatchPhase = "live_q4"
	PhaseLiveOT         MatchPhase = "live_ot"
	PhaseLiveP1         MatchPhase = "live_p1"
	PhaseLiveP2         MatchPhase = "live_p2"
	PhaseLiveP3         MatchPhase = "live_p3"
	PhaseLiveInning     MatchPhase = "live_inning"
	PhaseBreak          MatchPhase = "break"
	PhaseSuspended      MatchPhase = "suspended"
	PhaseFinished       MatchPhase = "finished"
	PhasePostponed      MatchPhase = "postponed"
	PhaseCancelled      MatchPhase = "cancelled"
)

// Tier is the granularity level of a match update.
type Tier int

const (
	TierScoreboard Tier = 0
	TierEvents     Tier = 1
	TierStats      Tier = 2
)

// Tiers lists every tier in ascending order.
var Tiers = []Tier{TierScoreboard, TierEvents, TierStats}

func (t Tier) Valid() bool { return t >= TierScoreboard && t <= TierStats }

// Key returns the snapshot key segment for a tier.
func (t Tier) Key() string {
	switch t {
	case TierEvents:
		return "events"
	case TierStats:
		return "stats"
	default:
		return "scoreboard"
	}
}

// Provider names the external data sources in the failover cascade.
type Provider string

const (
	ProviderSportradar   Provider = "sportradar"
	ProviderESPN         Provider = "espn"
	ProviderFootballData Provider = "football_data"
	ProviderTheSportsDB  Provider = "thesportsdb"
)

// EventType is the canonical match event taxonomy.
type EventType string

const (
	EventGoal         EventType = "goal"
	EventAssist       EventType = "assist"
	EventYellowCard   EventType = "yellow_card"
	EventRedCard      EventType = "red_card"
	EventSubstitution EventType = "substitution"
	EventPenalty      EventType = "penalty"
	EventPenaltyMiss  EventType = "penalty_miss"
	EventOwnGoal      EventType = "own_goal"
	EventVARDecision  EventType = "var_decision"
	EventPeriodStart  EventType = "period_start"
	EventPeriodEnd    EventType = "period_end"
	EventMatchStart   EventType = "match_start"
	EventMatchEnd     EventType = "match_end"
	EventShot         EventType = "shot"
	EventFoul         EventType = "foul"
	EventCorner       EventType = "corner"
	EventOffside      EventType = "offside"
	EventFreeKick     EventType = "free_kick"
	EventThrowIn      EventType = "throw_in"
	EventBasket       EventType = "basket"
	EventThreePointer EventType = "three_pointer"
	EventFreeThrow    EventType = "free_throw"
	EventRebound      EventType = "rebound"
	EventTurnover     EventType = "turnover"
	EventSteal        EventType = "steal"
	EventBlock        EventType = "block"
	EventHit          EventType = "hit"
	EventRun          EventType = "run"
	EventStrikeout    EventType = "strikeout"
	EventHomeRun      EventType = "home_run"
	EventWalk         EventType = "walk"
	EventTimeout      EventType = "timeout"
	EventGeneric      EventType = "generic"
)

// ScoringEvent returns the primary scoring event type for a sport.
// Used by the synthetic timeline builder when inferring events from
// score deltas.
func ScoringEvent(s Sport) EventType {
	switch s {
	case SportBasketball:
		return EventBasket
	case SportBaseball:
		return EventRun
	case SportFootball:
		return EventGeneric
	default:
		// soccer and hockey both score goals
		return EventGoal
	}
}
