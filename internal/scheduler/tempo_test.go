package scheduler

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/liveview/liveview/internal/model"
)

func TestLoadTemposDefaults(t *testing.T) {
	tempos, err := LoadTempos("")
	require.NoError(t, err)

	assert.Len(t, tempos, len(model.Sports))
	assert.Equal(t, 3.0, tempos[model.SportSoccer].LiveActive)
	assert.Equal(t, 2.0, tempos[model.SportBasketball].LiveActive)
	assert.Equal(t, 300.0, tempos[model.SportBaseball].Finished)
}

func TestLoadTemposOverride(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tempo.yaml")
	profile := `
soccer:
  live_active: 1.5
  live_break: 10
  pre_match: 30
  scheduled: 90
  finished: 600
`
	require.NoError(t, os.WriteFile(path, []byte(profile), 0o644))

	tempos, err := LoadTempos(path)
	require.NoError(t, err)

	assert.Equal(t, 1.5, tempos[model.SportSoccer].LiveActive)
	assert.Equal(t, 600.0, tempos[model.SportSoccer].Finished)
	// untouched sports keep the shipped defaults
	assert.Equal(t, 3.0, tempos[model.SportHockey].LiveActive)
}

func TestLoadTemposUnknownSport(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tempo.yaml")
	require.NoError(t, os.WriteFile(path, []byte("cricket:\n  live_active: 5\n"), 0o644))

	_, err := LoadTempos(path)
	assert.ErrorContains(t, err, "unknown sport")
}

func TestLoadTemposMissingFile(t *testing.T) {
	_, err := LoadTempos(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}

func TestTempoForKey(t *testing.T) {
	p := TempoProfile{LiveActive: 3, LiveBreak: 15, PreMatch: 60, Scheduled: 120, Finished: 300}
	assert.Equal(t, 3.0, p.forKey("live_active"))
	assert.Equal(t, 15.0, p.forKey("live_break"))
	assert.Equal(t, 300.0, p.forKey("finished"))
	assert.Equal(t, 120.0, p.forKey("anything_else"))
}
