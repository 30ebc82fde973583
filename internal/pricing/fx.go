package pricing

import (
	"context"

	"github.com/evetools/oretax/internal/esi"
	"go.uber.org/fx"
)

var Module = fx.Module("pricing",
	fx.Provide(NewESISource),
	fx.Provide(NewOracle),
	fx.Provide(NewResolver),
)

// esiSource adapts the ESI client to the MarketSource port.
type esiSource struct {
	client *esi.Client
}

func NewESISource(client *esi.Client) MarketSource {
	return &esiSource{client: client}
}

func (s *esiSource) Orders(ctx context.Context, regionID, typeID int64, side Side) ([]Order, error) {
	raw, err := s.client.Orders(ctx, regionID, typeID, esi.OrderSide(side))
	if err != nil {
		return nil, err
	}
	orders := make([]Order, 0, len(raw))
	for _, o := range raw {
		orders = append(orders, Order{LocationID: o.LocationID, Price: o.Price})
	}
	return orders, nil
}

func (s *esiSource) HistoryAverage(ctx context.Context, regionID, typeID int64) (float64, error) {
	return s.client.HistoryAverage(ctx, regionID, typeID)
}

func (s *esiSource) AdjustedPrices(ctx context.Context) (map[int64]float64, error) {
	return s.client.AdjustedPrices(ctx)
}
