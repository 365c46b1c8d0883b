package scheduler

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/liveview/liveview/internal/model"
)

// TempoProfile is the base poll interval (seconds) per phase family.
type TempoProfile struct {
	LiveActive float64 `yaml:"live_active"`
	LiveBreak  float64 `yaml:"live_break"`
	PreMatch   float64 `yaml:"pre_match"`
	Scheduled  float64 `yaml:"scheduled"`
	Finished   float64 `yaml:"finished"`
}

func (p TempoProfile) forKey(key string) float64 {
	switch key {
	case "live_active":
		return p.LiveActive
	case "live_break":
		return p.LiveBreak
	case "pre_match":
		return p.PreMatch
	case "finished":
		return p.Finished
	default:
		return p.Scheduled
	}
}

// defaultTempos are the shipped per-sport cadences; a YAML profile file
// can override individual sports.
var defaultTempos = map[model.Sport]TempoProfile{
	model.SportSoccer:     {LiveActive: 3, LiveBreak: 15, PreMatch: 60, Scheduled: 120, Finished: 300},
	model.SportBasketball: {LiveActive: 2, LiveBreak: 10, PreMatch: 60, Scheduled: 120, Finished: 300},
	model.SportHockey:     {LiveActive: 3, LiveBreak: 12, PreMatch: 60, Scheduled: 120, Finished: 300},
	model.SportBaseball:   {LiveActive: 5, LiveBreak: 20, PreMatch: 60, Scheduled: 120, Finished: 300},
	model.SportFootball:   {LiveActive: 3, LiveBreak: 15, PreMatch: 60, Scheduled: 120, Finished: 300},
}

// tierMultipliers slow the higher tiers relative to the scoreboard.
var tierMultipliers = map[model.Tier]float64{
	model.TierScoreboard: 1.0,
	model.TierEvents:     1.5,
	model.TierStats:      3.0,
}

// LoadTempos returns the tempo table, merged with overrides from the
// YAML file at path when given.
func LoadTempos(path string) (map[model.Sport]TempoProfile, error) {
	tempos := make(map[model.Sport]TempoProfile, len(defaultTempos))
	for s, p := range defaultTempos {
		tempos[s] = p
	}
	if path == "" {
		return tempos, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read tempo profile: %w", err)
	}
	var overrides map[string]TempoProfile
	if err := yaml.Unmarshal(data, &overrides); err != nil {
		return nil, fmt.Errorf("parse tempo profile: %w", err)
	}
	for name, p := range overrides {
		sport := model.Sport(name)
		if !sport.Valid() {
			return nil, fmt.Errorf("tempo profile: unknown sport %q", name)
		}
		tempos[sport] = p
	}
	return tempos, nil
}
