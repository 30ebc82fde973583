package pricing

import (
	"context"
	"sync"
	"time"

	"github.com/evetools/oretax/internal/cache"
	"github.com/evetools/oretax/internal/config"
	"go.uber.org/zap"
)

type Side string

const (
	SideSell Side = "sell"
	SideBuy  Side = "buy"
)

type Order struct {
	LocationID int64
	Price      float64
}

// MarketSource is the network half of price discovery. All methods tolerate
// partial outage at the Oracle level; the source itself just reports errors.
type MarketSource interface {
	Orders(ctx context.Context, regionID, typeID int64, side Side) ([]Order, error)
	HistoryAverage(ctx context.Context, regionID, typeID int64) (float64, error)
	AdjustedPrices(ctx context.Context) (map[int64]float64, error)
}

const primeWorkers = 4

// Oracle resolves a unit price per item type. It never fails: every lookup
// degrades through hub orders, region orders, history average and adjusted
// price before settling on zero.
type Oracle struct {
	source MarketSource
	policy *config.TaxPolicyHolder
	log    *zap.Logger

	prices   cache.Cache[int64, float64]
	adjusted cache.Cache[struct{}, map[int64]float64]
}

func NewOracle(source MarketSource, policy *config.TaxPolicyHolder, log *zap.Logger) *Oracle {
	return &Oracle{
		source:   source,
		policy:   policy,
		log:      log.Named("pricing.oracle"),
		prices:   cache.NewTTLCache[int64, float64](),
		adjusted: cache.NewTTLCache[struct{}, map[int64]float64](),
	}
}

// UnitPrice returns a value >= 0 for the type, consulting the cache first.
func (o *Oracle) UnitPrice(ctx context.Context, typeID int64) float64 {
	if v, ok := o.prices.Get(typeID); ok {
		return v
	}
	v := o.resolve(ctx, typeID)
	o.prices.Set(typeID, v, o.ttl())
	return v
}

// Prime warms the cache for a batch of type ids. Identical lookups are
// de-duplicated through the cache before any network call is made.
func (o *Oracle) Prime(ctx context.Context, typeIDs []int64) {
	seen := make(map[int64]struct{}, len(typeIDs))
	var misses []int64
	for _, id := range typeIDs {
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		if _, ok := o.prices.Get(id); !ok {
			misses = append(misses, id)
		}
	}
	if len(misses) == 0 {
		return
	}

	work := make(chan int64)
	var wg sync.WaitGroup
	for i := 0; i < primeWorkers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for id := range work {
				o.UnitPrice(ctx, id)
			}
		}()
	}
	for _, id := range misses {
		work <- id
	}
	close(work)
	wg.Wait()
}

// Invalidate drops every cached price.
func (o *Oracle) Invalidate() {
	o.prices.Flush()
	o.adjusted.Flush()
}

func (o *Oracle) resolve(ctx context.Context, typeID int64) float64 {
	policy := o.policy.Get()

	sells, sellErr := o.source.Orders(ctx, policy.ReferenceRegionID, typeID, SideSell)
	buys, buyErr := o.source.Orders(ctx, policy.ReferenceRegionID, typeID, SideBuy)
	if sellErr != nil || buyErr != nil {
		o.log.Warn("order book fetch degraded",
			zap.Int64("type_id", typeID),
			zap.NamedError("sell_err", sellErr),
			zap.NamedError("buy_err", buyErr),
		)
	}

	if price, ok := splitPrice(atLocation(sells, policy.ReferenceHubID), atLocation(buys, policy.ReferenceHubID)); ok {
		return price
	}
	if price, ok := splitPrice(sells, buys); ok {
		return price
	}

	if avg, err := o.source.HistoryAverage(ctx, policy.ReferenceRegionID, typeID); err == nil && avg > 0 {
		return avg
	} else if err != nil {
		o.log.Warn("history average unavailable", zap.Int64("type_id", typeID), zap.Error(err))
	}

	if adj, ok := o.adjustedPrice(ctx, typeID); ok {
		return adj
	}

	o.log.Warn("no price found, valuing at zero", zap.Int64("type_id", typeID))
	return 0
}

func (o *Oracle) adjustedPrice(ctx context.Context, typeID int64) (float64, bool) {
	table, ok := o.adjusted.Get(struct{}{})
	if !ok {
		var err error
		table, err = o.source.AdjustedPrices(ctx)
		if err != nil {
			o.log.Warn("adjusted prices unavailable", zap.Error(err))
			return 0, false
		}
		o.adjusted.Set(struct{}{}, table, o.ttl())
	}
	v, ok := table[typeID]
	return v, ok && v > 0
}

func (o *Oracle) ttl() time.Duration {
	minutes := o.policy.Get().PriceCacheTTLMinutes
	if minutes <= 0 {
		minutes = 60
	}
	return time.Duration(minutes) * time.Minute
}

// splitPrice is the mean of the lowest sell and highest buy; with a single
// populated side it is that side's best price.
func splitPrice(sells, buys []Order) (float64, bool) {
	bestSell, hasSell := lowest(sells)
	bestBuy, hasBuy := highest(buys)
	switch {
	case hasSell && hasBuy:
		return (bestSell + bestBuy) / 2, true
	case hasSell:
		return bestSell, true
	case hasBuy:
		return bestBuy, true
	default:
		return 0, false
	}
}

func atLocation(orders []Order, locationID int64) []Order {
	if locationID == 0 {
		return orders
	}
	var kept []Order
	for _, ord := range orders {
		if ord.LocationID == locationID {
			kept = append(kept, ord)
		}
	}
	return kept
}

func lowest(orders []Order) (float64, bool) {
	if len(orders) == 0 {
		return 0, false
	}
	best := orders[0].Price
	for _, ord := range orders[1:] {
		if ord.Price < best {
			best = ord.Price
		}
	}
	return best, true
}

func highest(orders []Order) (float64, bool) {
	if len(orders) == 0 {
		return 0, false
	}
	best := orders[0].Price
	for _, ord := range orders[1:] {
		if ord.Price > best {
			best = ord.Price
		}
	}
	return best, true
}
