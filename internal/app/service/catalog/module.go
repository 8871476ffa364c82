package catalog

import (
	"context"

	"go.uber.org/fx"
)

// Module exposes the plan catalog via Fx and seeds it on startup.
var Module = fx.Options(
	fx.Provide(NewService),
	fx.Invoke(func(lc fx.Lifecycle, s *Service) {
		lc.Append(fx.Hook{
			OnStart: func(ctx context.Context) error {
				return s.SeedPlans(ctx)
			},
		})
	}),
)
