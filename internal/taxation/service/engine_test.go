package service

import (
	"context"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/evetools/oretax/internal/config"
	creditdomain "github.com/evetools/oretax/internal/credit/domain"
	creditrepo "github.com/evetools/oretax/internal/credit/repository"
	miningdomain "github.com/evetools/oretax/internal/miningledger/domain"
	"github.com/evetools/oretax/internal/period"
	rosterdomain "github.com/evetools/oretax/internal/roster/domain"
	rosterrepo "github.com/evetools/oretax/internal/roster/repository"
	sdedomain "github.com/evetools/oretax/internal/sde/domain"
	sderepo "github.com/evetools/oretax/internal/sde/repository"
	taxdomain "github.com/evetools/oretax/internal/taxation/domain"
	ratedomain "github.com/evetools/oretax/internal/taxrate/domain"
	raterepo "github.com/evetools/oretax/internal/taxrate/repository"
	rateservice "github.com/evetools/oretax/internal/taxrate/service"
	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var testPeriod = period.Period{
	Start: time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC),
	End:   time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC),
}

func setupEngine(t *testing.T, policy config.TaxPolicy) (*gorm.DB, *Engine, *snowflake.Node) {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&miningdomain.MiningActivityRecord{},
		&taxdomain.TaxCalculation{},
		&rosterdomain.Character{},
		&sdedomain.ItemType{},
		&ratedomain.TaxRate{},
		&ratedomain.Exemption{},
		&creditdomain.CreditBalance{},
	))

	node, _ := snowflake.NewNode(1)
	log := zap.NewNop()
	holder := config.NewStaticTaxPolicyHolder(policy)

	engine := NewEngine(Params{
		DB:      db,
		Log:     log,
		GenID:   node,
		Config:  config.Config{AllianceID: 3001, CollectionCorpID: 9000},
		Policy:  holder,
		Roster:  rosterrepo.NewRepository(db),
		SDE:     sderepo.NewRepository(db),
		Rates:   rateservice.NewResolver(raterepo.NewRepository(db), holder, log),
		Credits: creditrepo.NewReader(db),
	})
	return db, engine, node
}

func seedCharacter(t *testing.T, db *gorm.DB, id int64, accountID *int64, isMain bool) {
	t.Helper()
	require.NoError(t, db.Create(&rosterdomain.Character{
		ID: id, Name: "Char", CorpID: 2001, AllianceID: 3001, AccountID: accountID, IsMain: isMain,
	}).Error)
}

func seedActivity(t *testing.T, db *gorm.DB, node *snowflake.Node, characterID, typeID, systemID int64, value float64, occurred time.Time) {
	t.Helper()
	require.NoError(t, db.Create(&miningdomain.MiningActivityRecord{
		ID: node.Generate(), CharacterID: characterID, CorpID: 2001, AllianceID: 3001,
		TypeID: typeID, Quantity: 1, Value: value, OccurredAt: occurred, SystemID: systemID,
	}).Error)
}

func seedOre(t *testing.T, db *gorm.DB, id int64, name string, groupID int64) {
	t.Helper()
	require.NoError(t, db.Create(&sdedomain.ItemType{ID: id, Name: name, GroupID: groupID, CategoryID: 25}).Error)
}

func TestCalculate_GroupsAliasesUnderCanonicalPayer(t *testing.T) {
	policy := config.DefaultTaxPolicy()
	policy.DefaultRatePercent = 10
	db, engine, node := setupEngine(t, policy)

	account := int64(500)
	seedCharacter(t, db, 1001, &account, true)  // main
	seedCharacter(t, db, 1002, &account, false) // alt
	seedCharacter(t, db, 1003, nil, false)      // unresolved ownership

	seedOre(t, db, 1230, "Veldspar", 462)
	occurred := testPeriod.Start.AddDate(0, 0, 1)
	seedActivity(t, db, node, 1001, 1230, 30000142, 1000, occurred)
	seedActivity(t, db, node, 1002, 1230, 30000142, 500, occurred)
	seedActivity(t, db, node, 1003, 1230, 30000142, 200, occurred)

	persisted, err := engine.Calculate(context.Background(), testPeriod)
	require.NoError(t, err)
	assert.Equal(t, 2, persisted)

	var main taxdomain.TaxCalculation
	require.NoError(t, db.Where("character_id = ?", 1001).First(&main).Error)
	assert.Equal(t, 1500.0, main.GrossValue)
	assert.Equal(t, 150.0, main.GrossTax)
	assert.Equal(t, 150.0, main.NetTax)
	assert.InDelta(t, 0.1, main.EffectiveRate, 1e-9)
	assert.Equal(t, taxdomain.StatusPending, main.Status)

	// unresolved ownership degrades to self-payer
	var self taxdomain.TaxCalculation
	require.NoError(t, db.Where("character_id = ?", 1003).First(&self).Error)
	assert.Equal(t, 200.0, self.GrossValue)
}

func TestCalculate_StickyPaid(t *testing.T) {
	policy := config.DefaultTaxPolicy()
	db, engine, node := setupEngine(t, policy)

	seedCharacter(t, db, 1001, nil, false)
	seedOre(t, db, 1230, "Veldspar", 462)
	seedActivity(t, db, node, 1001, 1230, 30000142, 1000, testPeriod.Start.AddDate(0, 0, 1))

	_, err := engine.Calculate(context.Background(), testPeriod)
	require.NoError(t, err)

	paidAt := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	require.NoError(t, db.Exec(
		`UPDATE tax_calculations SET status = 'paid', paid_at = ? WHERE character_id = ?`,
		paidAt, 1001,
	).Error)

	// more activity lands; recompute must not downgrade the paid row
	seedActivity(t, db, node, 1001, 1230, 30000142, 9999, testPeriod.Start.AddDate(0, 0, 2))
	_, err = engine.Calculate(context.Background(), testPeriod)
	require.NoError(t, err)

	var calc taxdomain.TaxCalculation
	require.NoError(t, db.Where("character_id = ?", 1001).First(&calc).Error)
	assert.Equal(t, taxdomain.StatusPaid, calc.Status)
	require.NotNil(t, calc.PaidAt)
	assert.True(t, calc.PaidAt.Equal(paidAt))
	assert.Equal(t, 1000.0, calc.GrossValue)
}

func TestCalculate_WormholeGasAlwaysExcluded(t *testing.T) {
	// empty allow-list taxes all systems, yet wormhole gas stays out
	policy := config.DefaultTaxPolicy()
	policy.TaxedSystems = nil
	db, engine, node := setupEngine(t, policy)

	seedCharacter(t, db, 1001, nil, false)
	seedOre(t, db, 30370, "Fullerite-C50", sdedomain.GroupGasCloud)
	seedOre(t, db, 1230, "Veldspar", 462)

	occurred := testPeriod.Start.AddDate(0, 0, 1)
	seedActivity(t, db, node, 1001, 30370, 31000005, 100000, occurred)              // wormhole gas
	seedActivity(t, db, node, 1001, 30370, 30000142, 400, occurred.Add(time.Hour)) // k-space gas stays
	seedActivity(t, db, node, 1001, 1230, 31000005, 600, occurred)                 // wormhole ore stays

	_, err := engine.Calculate(context.Background(), testPeriod)
	require.NoError(t, err)

	var calc taxdomain.TaxCalculation
	require.NoError(t, db.Where("character_id = ?", 1001).First(&calc).Error)
	assert.Equal(t, 1000.0, calc.GrossValue)
}

func TestCalculate_SystemAllowList(t *testing.T) {
	policy := config.DefaultTaxPolicy()
	policy.TaxedSystems = []int64{30000142}
	db, engine, node := setupEngine(t, policy)

	seedCharacter(t, db, 1001, nil, false)
	seedOre(t, db, 1230, "Veldspar", 462)
	occurred := testPeriod.Start.AddDate(0, 0, 1)
	seedActivity(t, db, node, 1001, 1230, 30000142, 1000, occurred)
	seedActivity(t, db, node, 1001, 1230, 30000143, 5000, occurred.Add(time.Hour))

	_, err := engine.Calculate(context.Background(), testPeriod)
	require.NoError(t, err)

	var calc taxdomain.TaxCalculation
	require.NoError(t, db.Where("character_id = ?", 1001).First(&calc).Error)
	assert.Equal(t, 1000.0, calc.GrossValue)
}

func TestCalculate_ExemptCorpProducesNoRows(t *testing.T) {
	policy := config.DefaultTaxPolicy()
	db, engine, node := setupEngine(t, policy)

	seedCharacter(t, db, 1001, nil, false)
	seedOre(t, db, 1230, "Veldspar", 462)
	seedActivity(t, db, node, 1001, 1230, 30000142, 1000, testPeriod.Start.AddDate(0, 0, 1))

	require.NoError(t, db.Create(&ratedomain.Exemption{
		ID: node.Generate(), Scope: ratedomain.ExemptCorp, ScopeID: 2001,
		From: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
	}).Error)

	persisted, err := engine.Calculate(context.Background(), testPeriod)
	require.NoError(t, err)
	assert.Zero(t, persisted)

	var count int64
	db.Model(&taxdomain.TaxCalculation{}).Count(&count)
	assert.Zero(t, count)
}

func TestCalculate_CreditOffset(t *testing.T) {
	policy := config.DefaultTaxPolicy()
	policy.DefaultRatePercent = 10
	db, engine, node := setupEngine(t, policy)

	seedCharacter(t, db, 1001, nil, false)
	seedOre(t, db, 1230, "Veldspar", 462)
	seedActivity(t, db, node, 1001, 1230, 30000142, 1000, testPeriod.Start.AddDate(0, 0, 1))

	require.NoError(t, db.Create(&creditdomain.CreditBalance{CharacterID: 1001, Amount: 60}).Error)

	_, err := engine.Calculate(context.Background(), testPeriod)
	require.NoError(t, err)

	var calc taxdomain.TaxCalculation
	require.NoError(t, db.Where("character_id = ?", 1001).First(&calc).Error)
	assert.Equal(t, 100.0, calc.GrossTax)
	assert.Equal(t, 60.0, calc.CreditApplied)
	assert.Equal(t, 40.0, calc.NetTax)

	// the engine reads but never mutates the balance
	var bal creditdomain.CreditBalance
	require.NoError(t, db.First(&bal, "character_id = ?", 1001).Error)
	assert.Equal(t, 60.0, bal.Amount)
}

func TestCalculate_CategoryRateCascade(t *testing.T) {
	policy := config.DefaultTaxPolicy()
	policy.DefaultRatePercent = 10
	db, engine, node := setupEngine(t, policy)

	seedCharacter(t, db, 1001, nil, false)
	seedOre(t, db, 16264, "Clear Icicle", sdedomain.GroupIce)
	require.NoError(t, db.Create(&ratedomain.TaxRate{
		ID: node.Generate(), Scope: ratedomain.ScopeCorp, ScopeID: 2001,
		Category: sdedomain.CategoryIce, Percent: 20,
		EffectiveFrom: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC), Enabled: true,
	}).Error)

	seedActivity(t, db, node, 1001, 16264, 30000142, 1000, testPeriod.Start.AddDate(0, 0, 1))

	_, err := engine.Calculate(context.Background(), testPeriod)
	require.NoError(t, err)

	var calc taxdomain.TaxCalculation
	require.NoError(t, db.Where("character_id = ?", 1001).First(&calc).Error)
	assert.Equal(t, 200.0, calc.GrossTax)
}
