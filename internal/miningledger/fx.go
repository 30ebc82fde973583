package miningledger

import (
	"context"
	"time"

	"github.com/evetools/oretax/internal/esi"
	miningdomain "github.com/evetools/oretax/internal/miningledger/domain"
	"github.com/evetools/oretax/internal/miningledger/service"
	"go.uber.org/fx"
)

var Module = fx.Module("miningledger",
	fx.Provide(NewESISource),
	fx.Provide(service.NewImporter),
)

type esiSource struct {
	client *esi.Client
}

func NewESISource(client *esi.Client) miningdomain.EventSource {
	return &esiSource{client: client}
}

func (s *esiSource) MiningEvents(ctx context.Context, characterIDs []int64, from, to time.Time) ([]miningdomain.MiningEvent, error) {
	raw, err := s.client.MiningEvents(ctx, characterIDs, from, to)
	if err != nil {
		return nil, err
	}
	events := make([]miningdomain.MiningEvent, 0, len(raw))
	for _, ev := range raw {
		events = append(events, miningdomain.MiningEvent{
			CharacterID: ev.CharacterID,
			TypeID:      ev.TypeID,
			Quantity:    ev.Quantity,
			SystemID:    ev.SolarSystemID,
			OccurredAt:  ev.Date.Time,
		})
	}
	return events, nil
}
