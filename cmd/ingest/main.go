package main

import (
	"fmt"

	"github.com/liveview/liveview/internal/ingest"
	"github.com/liveview/liveview/internal/normalize"
	"github.com/liveview/liveview/internal/process"
	"github.com/liveview/liveview/internal/telemetry"
)

func main() {
	process.Run(process.ServiceConfig{
		Name:           "ingest",
		NeedsStore:     true,
		NeedsProviders: true,

		Build: func(deps *process.Deps) ([]process.Runner, func(), error) {
			archive, err := ingest.OpenArchive(deps.Cfg.IngestArchivePath)
			if err != nil {
				return nil, nil, err
			}
			svc := ingest.New(deps.Cfg, deps.Bus, deps.Registry,
				normalize.New(deps.Store, deps.Bus), archive)
			return []process.Runner{svc.Run}, func() { archive.Close() }, nil
		},

		Summary: func() string {
			return fmt.Sprintf("polls=%d  errors=%d  rate_limited=%d  p99=%s",
				telemetry.Metrics.ProviderRequests.Value(),
				telemetry.Metrics.ProviderErrors.Value(),
				telemetry.Metrics.ProviderRateLimits.Value(),
				telemetry.Metrics.ProviderLatency.P99(),
			)
		},
	})
}
