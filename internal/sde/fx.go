package sde

import (
	"github.com/evetools/oretax/internal/sde/repository"
	"go.uber.org/fx"
)

var Module = fx.Module("sde",
	fx.Provide(repository.NewRepository),
)
