package billing

import "go.uber.org/fx"

// Module exposes the billing record service via Fx.
var Module = fx.Options(
	fx.Provide(NewService),
)
