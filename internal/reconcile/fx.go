package reconcile

import (
	"context"
	"time"

	"github.com/evetools/oretax/internal/config"
	"github.com/evetools/oretax/internal/esi"
	recdomain "github.com/evetools/oretax/internal/reconcile/domain"
	"github.com/evetools/oretax/internal/reconcile/service"
	"go.uber.org/fx"
)

var Module = fx.Module("reconcile",
	fx.Provide(NewESISource),
	fx.Provide(service.NewMatcher),
)

type esiSource struct {
	client *esi.Client
	cfg    config.Config
}

func NewESISource(client *esi.Client, cfg config.Config) recdomain.TransactionSource {
	return &esiSource{client: client, cfg: cfg}
}

func (s *esiSource) IncomingTransfers(ctx context.Context, since time.Time) ([]recdomain.WalletTransfer, error) {
	entries, err := s.client.WalletJournal(ctx, s.cfg.CollectionCorpID, s.cfg.WalletDivision, since)
	if err != nil {
		return nil, err
	}
	transfers := make([]recdomain.WalletTransfer, 0, len(entries))
	for _, e := range entries {
		transfers = append(transfers, recdomain.WalletTransfer{
			RefID:         e.ID,
			Amount:        e.Amount,
			FirstPartyID:  e.FirstPartyID,
			SecondPartyID: e.SecondPartyID,
			OccurredAt:    e.Date,
		})
	}
	return transfers, nil
}
