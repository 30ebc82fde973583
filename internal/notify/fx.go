package notify

import (
	"github.com/evetools/oretax/internal/config"
	invoicedomain "github.com/evetools/oretax/internal/invoice/domain"
	"github.com/evetools/oretax/internal/providers/discord"
	"github.com/evetools/oretax/internal/providers/email"
	"github.com/evetools/oretax/internal/providers/pdf"
	rosterdomain "github.com/evetools/oretax/internal/roster/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

type Params struct {
	fx.In

	Log     *zap.Logger
	Config  config.Config
	Discord discord.Provider
	Email   email.Provider
	PDF     pdf.Provider
	Roster  rosterdomain.Repository
}

var Module = fx.Module("notify",
	fx.Provide(func(p Params) invoicedomain.Notifier {
		return New(Deps{
			Log:     p.Log,
			Config:  p.Config,
			Discord: p.Discord,
			Email:   p.Email,
			PDF:     p.PDF,
			Roster:  p.Roster,
		})
	}),
)
