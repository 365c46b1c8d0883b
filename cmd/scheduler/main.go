package main

import (
	"fmt"

	"github.com/liveview/liveview/internal/process"
	"github.com/liveview/liveview/internal/scheduler"
	"github.com/liveview/liveview/internal/telemetry"
)

func main() {
	process.Run(process.ServiceConfig{
		Name:           "scheduler",
		NeedsStore:     true,
		NeedsProviders: true,

		Build: func(deps *process.Deps) ([]process.Runner, func(), error) {
			tempos, err := scheduler.LoadTempos(deps.Cfg.TempoProfilePath)
			if err != nil {
				return nil, nil, err
			}
			interval := scheduler.NewIntervalEngine(deps.Bus, tempos,
				deps.Cfg.SchedulerMinPoll, deps.Cfg.SchedulerMaxPoll, deps.Cfg.SchedulerJitter)

			svc := scheduler.New(deps.Cfg, deps.Bus, deps.Store, deps.Registry, deps.Scorer, interval)
			syncer := scheduler.NewSyncer(deps.Cfg, deps.Store, deps.Registry)
			return []process.Runner{svc.Run, syncer.Run}, nil, nil
		},

		Summary: func() string {
			return fmt.Sprintf("commands=%d  tasks=%d  syncs=%d",
				telemetry.Metrics.PollCommandsSent.Value(),
				telemetry.Metrics.ActivePollTasks.Value(),
				telemetry.Metrics.ScheduleSyncs.Value(),
			)
		},
	})
}
