package service

import (
	"context"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/evetools/oretax/internal/config"
	miningdomain "github.com/evetools/oretax/internal/miningledger/domain"
	"github.com/evetools/oretax/internal/period"
	"github.com/evetools/oretax/internal/pricing"
	rosterdomain "github.com/evetools/oretax/internal/roster/domain"
	rosterrepo "github.com/evetools/oretax/internal/roster/repository"
	sdedomain "github.com/evetools/oretax/internal/sde/domain"
	sderepo "github.com/evetools/oretax/internal/sde/repository"
	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type eventSourceStub struct {
	events []miningdomain.MiningEvent
}

func (s *eventSourceStub) MiningEvents(context.Context, []int64, time.Time, time.Time) ([]miningdomain.MiningEvent, error) {
	return s.events, nil
}

type marketStub struct {
	unit map[int64]float64
}

func (m *marketStub) Orders(_ context.Context, _ int64, typeID int64, side pricing.Side) ([]pricing.Order, error) {
	price, ok := m.unit[typeID]
	if !ok {
		return nil, nil
	}
	return []pricing.Order{{LocationID: 60003760, Price: price}}, nil
}

func (m *marketStub) HistoryAverage(context.Context, int64, int64) (float64, error) {
	return 0, nil
}

func (m *marketStub) AdjustedPrices(context.Context) (map[int64]float64, error) {
	return nil, nil
}

func setupImporter(t *testing.T, events []miningdomain.MiningEvent, prices map[int64]float64) (*gorm.DB, *Importer) {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&miningdomain.MiningActivityRecord{},
		&rosterdomain.Character{},
		&sdedomain.ItemType{},
	))

	accountID := int64(500)
	require.NoError(t, db.Create(&rosterdomain.Character{
		ID: 1001, Name: "Miner Alpha", CorpID: 2001, AllianceID: 3001, AccountID: &accountID, IsMain: true,
	}).Error)

	require.NoError(t, db.Create(&sdedomain.ItemType{ID: 1230, Name: "Veldspar", GroupID: 462, CategoryID: 25}).Error)
	require.NoError(t, db.Create(&sdedomain.ItemType{ID: 62516, Name: "Compressed Veldspar", GroupID: 462, CategoryID: 25}).Error)
	require.NoError(t, db.Create(&sdedomain.ItemType{ID: 11396, Name: "Mercoxit", GroupID: 468, CategoryID: 25}).Error)

	node, _ := snowflake.NewNode(1)
	log := zap.NewNop()
	policy := config.NewStaticTaxPolicyHolder(config.DefaultTaxPolicy())

	oracle := pricing.NewOracle(&marketStub{unit: prices}, policy, log)
	resolver := pricing.NewResolver(sderepo.NewRepository(db), log)

	imp := NewImporter(Params{
		DB:       db,
		Log:      log,
		GenID:    node,
		Config:   config.Config{AllianceID: 3001},
		Source:   &eventSourceStub{events: events},
		Roster:   rosterrepo.NewRepository(db),
		Oracle:   oracle,
		Resolver: resolver,
	})
	return db, imp
}

func TestImport_Idempotent(t *testing.T) {
	occurred := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)
	events := []miningdomain.MiningEvent{
		{CharacterID: 1001, TypeID: 11396, Quantity: 1000, SystemID: 30000142, OccurredAt: occurred},
	}
	db, imp := setupImporter(t, events, map[int64]float64{11396: 9})
	p := period.Month(occurred)

	inserted, err := imp.Import(context.Background(), p)
	require.NoError(t, err)
	assert.Equal(t, 1, inserted)

	again, err := imp.Import(context.Background(), p)
	require.NoError(t, err)
	assert.Zero(t, again)

	var count int64
	db.Model(&miningdomain.MiningActivityRecord{}).Count(&count)
	assert.EqualValues(t, 1, count)
}

func TestImport_ValuesAtUnitPriceTimesQuantity(t *testing.T) {
	// 1000 units with no compressed variant at unit price 9 -> value 9000
	occurred := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)
	events := []miningdomain.MiningEvent{
		{CharacterID: 1001, TypeID: 11396, Quantity: 1000, SystemID: 30000142, OccurredAt: occurred},
	}
	db, imp := setupImporter(t, events, map[int64]float64{11396: 9})

	_, err := imp.Import(context.Background(), period.Month(occurred))
	require.NoError(t, err)

	var rec miningdomain.MiningActivityRecord
	require.NoError(t, db.First(&rec).Error)
	assert.Equal(t, 9000.0, rec.Value)
}

func TestImport_UsesCompressedVariantPrice(t *testing.T) {
	occurred := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)
	events := []miningdomain.MiningEvent{
		{CharacterID: 1001, TypeID: 1230, Quantity: 100, SystemID: 30000142, OccurredAt: occurred},
	}
	// raw Veldspar trades at 5, the compressed variant at 50: value follows compressed
	db, imp := setupImporter(t, events, map[int64]float64{1230: 5, 62516: 50})

	_, err := imp.Import(context.Background(), period.Month(occurred))
	require.NoError(t, err)

	var rec miningdomain.MiningActivityRecord
	require.NoError(t, db.First(&rec).Error)
	assert.Equal(t, 5000.0, rec.Value)
}

func TestRefreshValuations(t *testing.T) {
	occurred := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)
	events := []miningdomain.MiningEvent{
		{CharacterID: 1001, TypeID: 11396, Quantity: 10, SystemID: 30000142, OccurredAt: occurred},
	}
	// no price at import time: line values at zero, not an error
	db, imp := setupImporter(t, events, map[int64]float64{})
	p := period.Month(occurred)

	_, err := imp.Import(context.Background(), p)
	require.NoError(t, err)

	var rec miningdomain.MiningActivityRecord
	require.NoError(t, db.First(&rec).Error)
	assert.Zero(t, rec.Value)

	// price appears later; refresh re-values the row
	imp.oracle = pricing.NewOracle(&marketStub{unit: map[int64]float64{11396: 4}},
		config.NewStaticTaxPolicyHolder(config.DefaultTaxPolicy()), zap.NewNop())

	updated, err := imp.RefreshValuations(context.Background(), p)
	require.NoError(t, err)
	assert.Equal(t, 1, updated)

	require.NoError(t, db.First(&rec).Error)
	assert.Equal(t, 40.0, rec.Value)
}
