package service

import (
	"context"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/evetools/oretax/internal/config"
	creditdomain "github.com/evetools/oretax/internal/credit/domain"
	invoicedomain "github.com/evetools/oretax/internal/invoice/domain"
	recdomain "github.com/evetools/oretax/internal/reconcile/domain"
	rosterdomain "github.com/evetools/oretax/internal/roster/domain"
	rosterrepo "github.com/evetools/oretax/internal/roster/repository"
	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const collectionCorp = int64(9000)

func setupLedger(t *testing.T, deMinimis float64) (*gorm.DB, *Ledger, *snowflake.Node) {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&creditdomain.CreditBalance{},
		&invoicedomain.Invoice{},
		&recdomain.WalletTransfer{},
		&rosterdomain.Character{},
	))

	node, _ := snowflake.NewNode(1)
	policy := config.DefaultTaxPolicy()
	policy.CreditDeMinimis = deMinimis

	l := NewLedger(Params{
		DB:     db,
		Log:    zap.NewNop(),
		Config: config.Config{CollectionCorpID: collectionCorp},
		Policy: config.NewStaticTaxPolicyHolder(policy),
		Roster: rosterrepo.NewRepository(db),
	})
	return db, l, node
}

func seedAccount(t *testing.T, db *gorm.DB, accountID int64, mainID int64, altIDs ...int64) {
	t.Helper()
	require.NoError(t, db.Create(&rosterdomain.Character{ID: mainID, Name: "Main", CorpID: 2001, AllianceID: 3001, AccountID: &accountID, IsMain: true}).Error)
	for _, id := range altIDs {
		require.NoError(t, db.Create(&rosterdomain.Character{ID: id, Name: "Alt", CorpID: 2001, AllianceID: 3001, AccountID: &accountID}).Error)
	}
}

func seedInvoice(t *testing.T, db *gorm.DB, node *snowflake.Node, accountID int64, amount, appliedPartial float64) {
	t.Helper()
	require.NoError(t, db.Create(&invoicedomain.Invoice{
		ID: node.Generate(), AccountID: accountID, CharacterID: accountID,
		Amount: amount, AppliedPartial: appliedPartial,
		DueDate: time.Now().UTC(), Status: invoicedomain.StatusSent,
	}).Error)
}

func seedTransfer(t *testing.T, db *gorm.DB, ref int64, from int64, amount float64) {
	t.Helper()
	require.NoError(t, db.Create(&recdomain.WalletTransfer{
		RefID: ref, Amount: amount, FirstPartyID: from, SecondPartyID: collectionCorp,
		OccurredAt: time.Now().UTC(),
	}).Error)
}

func TestRecompute_CreditConservation(t *testing.T) {
	db, l, node := setupLedger(t, 0)

	// invoiced 20M historically, sent 25M across several transfers and
	// aliases: credit settles at 5M regardless of transaction count
	seedAccount(t, db, 500, 1001, 1002)
	seedInvoice(t, db, node, 500, 12_000_000, 0)
	seedInvoice(t, db, node, 500, 5_000_000, 3_000_000)
	seedTransfer(t, db, 71, 1001, 10_000_000)
	seedTransfer(t, db, 72, 1002, 9_000_000)
	seedTransfer(t, db, 73, 1001, 6_000_000)

	balances, err := l.Recompute(context.Background(), false)
	require.NoError(t, err)
	assert.Equal(t, 5_000_000.0, balances[1001])

	var bal creditdomain.CreditBalance
	require.NoError(t, db.First(&bal, "character_id = ?", 1001).Error)
	assert.Equal(t, 5_000_000.0, bal.Amount)
}

func TestRecompute_Idempotent(t *testing.T) {
	db, l, node := setupLedger(t, 0)

	seedAccount(t, db, 500, 1001)
	seedInvoice(t, db, node, 500, 1_000_000, 0)
	seedTransfer(t, db, 71, 1001, 3_000_000)

	first, err := l.Recompute(context.Background(), false)
	require.NoError(t, err)
	second, err := l.Recompute(context.Background(), false)
	require.NoError(t, err)
	assert.Equal(t, first, second)

	var count int64
	db.Model(&creditdomain.CreditBalance{}).Count(&count)
	assert.EqualValues(t, 1, count)
}

func TestRecompute_ResetsStaleBalances(t *testing.T) {
	db, l, node := setupLedger(t, 0)

	// a leftover balance for an account that no longer has overpayment
	require.NoError(t, db.Create(&creditdomain.CreditBalance{CharacterID: 1001, Amount: 9_999_999}).Error)
	seedAccount(t, db, 500, 1001)
	seedInvoice(t, db, node, 500, 5_000_000, 0)
	seedTransfer(t, db, 71, 1001, 5_000_000)

	_, err := l.Recompute(context.Background(), false)
	require.NoError(t, err)

	var count int64
	db.Model(&creditdomain.CreditBalance{}).Count(&count)
	assert.Zero(t, count)
}

func TestRecompute_DeMinimis(t *testing.T) {
	db, l, node := setupLedger(t, 100_000)

	seedAccount(t, db, 500, 1001)
	seedInvoice(t, db, node, 500, 1_000_000, 0)
	seedTransfer(t, db, 71, 1001, 1_050_000) // 50k over, below threshold

	balances, err := l.Recompute(context.Background(), false)
	require.NoError(t, err)
	assert.Empty(t, balances)
}

func TestRecompute_NeverNegative(t *testing.T) {
	db, l, node := setupLedger(t, 0)

	seedAccount(t, db, 500, 1001)
	seedInvoice(t, db, node, 500, 10_000_000, 0)
	seedTransfer(t, db, 71, 1001, 4_000_000)

	balances, err := l.Recompute(context.Background(), false)
	require.NoError(t, err)
	assert.Empty(t, balances)
}

func TestRecompute_DryRunWritesNothing(t *testing.T) {
	db, l, node := setupLedger(t, 0)

	seedAccount(t, db, 500, 1001)
	seedInvoice(t, db, node, 500, 1_000_000, 0)
	seedTransfer(t, db, 71, 1001, 2_000_000)

	balances, err := l.Recompute(context.Background(), true)
	require.NoError(t, err)
	assert.Equal(t, 1_000_000.0, balances[1001])

	var count int64
	db.Model(&creditdomain.CreditBalance{}).Count(&count)
	assert.Zero(t, count)
}
