package credit

import (
	"github.com/evetools/oretax/internal/credit/repository"
	"github.com/evetools/oretax/internal/credit/service"
	"go.uber.org/fx"
)

var Module = fx.Module("credit",
	fx.Provide(repository.NewReader),
	fx.Provide(service.NewLedger),
)
