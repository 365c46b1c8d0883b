package main

import (
	"fmt"

	"github.com/liveview/liveview/internal/process"
	"github.com/liveview/liveview/internal/telemetry"
	"github.com/liveview/liveview/internal/ws"
)

func main() {
	process.Run(process.ServiceConfig{
		Name: "gateway",

		Build: func(deps *process.Deps) ([]process.Runner, func(), error) {
			gw := ws.NewGateway(deps.Cfg, deps.Bus)
			return []process.Runner{gw.Run}, nil, nil
		},

		Summary: func() string {
			return fmt.Sprintf("connections=%d  out=%d  replays=%d",
				telemetry.Metrics.WSConnections.Value(),
				telemetry.Metrics.WSMessagesOut.Value(),
				telemetry.Metrics.WSReplaysSent.Value(),
			)
		},
	})
}
