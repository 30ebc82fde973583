package taxrate

import (
	"github.com/evetools/oretax/internal/taxrate/repository"
	"github.com/evetools/oretax/internal/taxrate/service"
	"go.uber.org/fx"
)

var Module = fx.Module("taxrate",
	fx.Provide(repository.NewRepository),
	fx.Provide(service.NewResolver),
)
