package taxation

import (
	"github.com/evetools/oretax/internal/taxation/service"
	"go.uber.org/fx"
)

var Module = fx.Module("taxation",
	fx.Provide(service.NewEngine),
)
