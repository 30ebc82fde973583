package invoice

import (
	"github.com/evetools/oretax/internal/invoice/service"
	"go.uber.org/fx"
)

var Module = fx.Module("invoice",
	fx.Provide(service.NewGenerator),
)
