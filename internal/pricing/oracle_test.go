package pricing

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/evetools/oretax/internal/config"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

type marketStub struct {
	mu       sync.Mutex
	sells    map[int64][]Order
	buys     map[int64][]Order
	history  map[int64]float64
	adjusted map[int64]float64

	orderCalls   int
	historyErr   error
	adjustedErr  error
	historyCalls int
}

func (m *marketStub) Orders(_ context.Context, _ int64, typeID int64, side Side) ([]Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.orderCalls++
	if side == SideSell {
		return m.sells[typeID], nil
	}
	return m.buys[typeID], nil
}

func (m *marketStub) HistoryAverage(_ context.Context, _ int64, typeID int64) (float64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.historyCalls++
	if m.historyErr != nil {
		return 0, m.historyErr
	}
	return m.history[typeID], nil
}

func (m *marketStub) AdjustedPrices(context.Context) (map[int64]float64, error) {
	if m.adjustedErr != nil {
		return nil, m.adjustedErr
	}
	return m.adjusted, nil
}

func newOracle(source MarketSource) *Oracle {
	policy := config.DefaultTaxPolicy()
	policy.ReferenceHubID = 60003760
	return NewOracle(source, config.NewStaticTaxPolicyHolder(policy), zap.NewNop())
}

func TestUnitPrice_HubSplit(t *testing.T) {
	// live sell=10 / buy=8 at the hub -> split 9
	stub := &marketStub{
		sells: map[int64][]Order{34: {{LocationID: 60003760, Price: 10}, {LocationID: 60003760, Price: 12}}},
		buys:  map[int64][]Order{34: {{LocationID: 60003760, Price: 8}, {LocationID: 60003760, Price: 7}}},
	}
	o := newOracle(stub)

	assert.Equal(t, 9.0, o.UnitPrice(context.Background(), 34))
}

func TestUnitPrice_RegionFallbackWhenHubEmpty(t *testing.T) {
	stub := &marketStub{
		sells: map[int64][]Order{34: {{LocationID: 60008494, Price: 20}}},
		buys:  map[int64][]Order{34: {{LocationID: 60008494, Price: 10}}},
	}
	o := newOracle(stub)

	assert.Equal(t, 15.0, o.UnitPrice(context.Background(), 34))
}

func TestUnitPrice_SingleSide(t *testing.T) {
	stub := &marketStub{
		sells: map[int64][]Order{34: {{LocationID: 60003760, Price: 11}}},
		buys:  map[int64][]Order{},
	}
	o := newOracle(stub)

	assert.Equal(t, 11.0, o.UnitPrice(context.Background(), 34))
}

func TestUnitPrice_DegradationNeverErrors(t *testing.T) {
	// empty order book both sides -> history -> adjusted -> 0
	stub := &marketStub{
		history:  map[int64]float64{34: 5.5},
		adjusted: map[int64]float64{34: 4.4},
	}
	o := newOracle(stub)
	assert.Equal(t, 5.5, o.UnitPrice(context.Background(), 34))

	stub2 := &marketStub{
		historyErr: errors.New("boom"),
		adjusted:   map[int64]float64{34: 4.4},
	}
	o2 := newOracle(stub2)
	assert.Equal(t, 4.4, o2.UnitPrice(context.Background(), 34))

	stub3 := &marketStub{
		historyErr:  errors.New("boom"),
		adjustedErr: errors.New("boom"),
	}
	o3 := newOracle(stub3)
	assert.Zero(t, o3.UnitPrice(context.Background(), 34))
}

func TestPrime_DeduplicatesThroughCache(t *testing.T) {
	stub := &marketStub{
		sells: map[int64][]Order{34: {{LocationID: 60003760, Price: 10}}},
		buys:  map[int64][]Order{34: {{LocationID: 60003760, Price: 8}}},
	}
	o := newOracle(stub)

	o.Prime(context.Background(), []int64{34, 34, 34, 34})

	// one sell fetch + one buy fetch for the single distinct type
	assert.Equal(t, 2, stub.orderCalls)
	assert.Equal(t, 9.0, o.UnitPrice(context.Background(), 34))
	assert.Equal(t, 2, stub.orderCalls)
}
