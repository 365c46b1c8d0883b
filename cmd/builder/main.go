package main

import (
	"fmt"

	"github.com/liveview/liveview/internal/builder"
	"github.com/liveview/liveview/internal/process"
	"github.com/liveview/liveview/internal/telemetry"
)

func main() {
	process.Run(process.ServiceConfig{
		Name:       "builder",
		NeedsStore: true,

		Build: func(deps *process.Deps) ([]process.Runner, func(), error) {
			svc := builder.New(deps.Bus, deps.Store)
			return []process.Runner{svc.Run}, nil, nil
		},

		Summary: func() string {
			return fmt.Sprintf("synthetic=%d  superseded=%d",
				telemetry.Metrics.SyntheticEvents.Value(),
				telemetry.Metrics.SyntheticSuperseded.Value(),
			)
		},
	})
}
