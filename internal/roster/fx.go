package roster

import (
	"github.com/evetools/oretax/internal/roster/repository"
	"go.uber.org/fx"
)

var Module = fx.Module("roster",
	fx.Provide(repository.NewRepository),
)
