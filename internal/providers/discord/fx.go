package discord

import (
	"github.com/evetools/oretax/internal/config"
	"go.uber.org/fx"
)

var Module = fx.Module("providers.discord",
	fx.Provide(NewFromConfig),
)

func NewFromConfig(cfg config.Config) Provider {
	if cfg.DiscordWebhookURL == "" {
		return &NoOpProvider{}
	}
	return NewWebhook(cfg.DiscordWebhookURL)
}
