package main

import (
	"fmt"

	"github.com/liveview/liveview/internal/normalize"
	"github.com/liveview/liveview/internal/process"
	"github.com/liveview/liveview/internal/provider"
	"github.com/liveview/liveview/internal/provider/espn"
	"github.com/liveview/liveview/internal/telemetry"
	"github.com/liveview/liveview/internal/verifier"
)

func main() {
	process.Run(process.ServiceConfig{
		Name:       "verifier",
		NeedsStore: true,

		Build: func(deps *process.Deps) ([]process.Runner, func(), error) {
			// the verifier cross-checks against ESPN directly, outside
			// the cascade, so the primary path and the check stay independent
			source := espn.New(provider.NewHTTPClient(deps.Cfg.ProviderRequestTimeout, nil))
			engine := verifier.New(deps.Cfg, deps.Bus, deps.Store,
				normalize.New(deps.Store, deps.Bus), source)
			return []process.Runner{engine.Run}, nil, nil
		},

		Summary: func() string {
			return fmt.Sprintf("checks=%d  corrections=%d  disputes=%d",
				telemetry.Metrics.VerifierChecks.Value(),
				telemetry.Metrics.VerifierCorrections.Value(),
				telemetry.Metrics.VerifierDisputes.Value(),
			)
		},
	})
}
