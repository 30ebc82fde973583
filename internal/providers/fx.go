package providers

import (
	"github.com/evetools/oretax/internal/providers/discord"
	"github.com/evetools/oretax/internal/providers/email"
	"github.com/evetools/oretax/internal/providers/pdf"
	"go.uber.org/fx"
)

var Module = fx.Module("providers",
	discord.Module,
	email.Module,
	pdf.Module,
)
