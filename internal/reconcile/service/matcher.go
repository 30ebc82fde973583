package service

import (
	"context"
	"time"

	"github.com/evetools/oretax/internal/clock"
	"github.com/evetools/oretax/internal/config"
	invoicedomain "github.com/evetools/oretax/internal/invoice/domain"
	recdomain "github.com/evetools/oretax/internal/reconcile/domain"
	rosterdomain "github.com/evetools/oretax/internal/roster/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB     *gorm.DB
	Log    *zap.Logger
	Config config.Config
	Policy *config.TaxPolicyHolder
	Roster rosterdomain.Repository
	Source recdomain.TransactionSource `optional:"true"`
	Clock  clock.Clock
}

// Matcher reconciles incoming payments against outstanding invoices with a
// greedy, first-fit scan: most recent transaction first, amounts never split.
type Matcher struct {
	db     *gorm.DB
	log    *zap.Logger
	cfg    config.Config
	policy *config.TaxPolicyHolder
	roster rosterdomain.Repository
	source recdomain.TransactionSource
	clock  clock.Clock
}

func NewMatcher(p Params) *Matcher {
	return &Matcher{
		db:     p.DB,
		log:    p.Log.Named("reconcile.matcher"),
		cfg:    p.Config,
		policy: p.Policy,
		roster: p.Roster,
		source: p.Source,
		clock:  p.Clock,
	}
}

// Reconcile ingests the lookback window of incoming transfers and matches
// them against non-paid invoices. An unmatched invoice stays outstanding;
// that is not an error. Returns the number of invoices settled.
func (m *Matcher) Reconcile(ctx context.Context) (int, error) {
	policy := m.policy.Get()
	since := m.clock.Now().AddDate(0, 0, -policy.MatcherLookbackDays)
	tolerance := time.Duration(policy.MatcherToleranceMinutes) * time.Minute

	if err := m.ingest(ctx, since); err != nil {
		// stale local history still allows matching previously seen rows
		m.log.Warn("transfer ingest degraded", zap.Error(err))
	}

	var transfers []recdomain.WalletTransfer
	err := m.db.WithContext(ctx).Raw(
		`SELECT ref_id, amount, first_party_id, second_party_id, occurred_at
		 FROM wallet_transfers
		 WHERE amount > 0 AND second_party_id = ? AND occurred_at >= ?
		 ORDER BY occurred_at DESC, ref_id DESC`,
		m.cfg.CollectionCorpID, since,
	).Scan(&transfers).Error
	if err != nil {
		return 0, err
	}

	var invoices []invoicedomain.Invoice
	err = m.db.WithContext(ctx).Raw(
		`SELECT id, account_id, character_id, amount, status, created_at, calculation_ids
		 FROM invoices
		 WHERE status <> 'paid'
		 ORDER BY created_at ASC, id ASC`,
	).Scan(&invoices).Error
	if err != nil {
		return 0, err
	}

	matched := 0
	claimed := make(map[int64]struct{})
	for _, inv := range invoices {
		aliases := m.aliasSet(ctx, inv)
		for _, tx := range transfers {
			if _, taken := claimed[tx.RefID]; taken {
				continue
			}
			if _, ok := aliases[tx.FirstPartyID]; !ok {
				if _, ok := aliases[tx.SecondPartyID]; !ok {
					continue
				}
			}
			if tx.Amount < inv.Amount {
				continue
			}
			if tx.OccurredAt.Before(inv.CreatedAt.Add(-tolerance)) {
				continue
			}

			ok, err := m.settle(ctx, inv, tx)
			if err != nil {
				m.log.Warn("settlement failed", zap.Int64("invoice_id", int64(inv.ID)), zap.Error(err))
				continue
			}
			if !ok {
				// another run claimed this reference first
				claimed[tx.RefID] = struct{}{}
				continue
			}
			claimed[tx.RefID] = struct{}{}
			matched++
			break
		}
	}

	m.log.Info("reconciliation finished",
		zap.Int("transfers", len(transfers)),
		zap.Int("open_invoices", len(invoices)),
		zap.Int("matched", matched),
	)
	return matched, nil
}

// ingest persists the remote journal window into local history, keyed by the
// journal reference id so repeated runs change nothing.
func (m *Matcher) ingest(ctx context.Context, since time.Time) error {
	if m.source == nil {
		return nil
	}
	transfers, err := m.source.IncomingTransfers(ctx, since)
	if err != nil {
		return err
	}
	now := time.Now().UTC()
	for _, tx := range transfers {
		if tx.Amount <= 0 {
			continue
		}
		if err := m.db.WithContext(ctx).Exec(
			`INSERT INTO wallet_transfers (ref_id, amount, first_party_id, second_party_id, occurred_at, created_at)
			 VALUES (?, ?, ?, ?, ?, ?)
			 ON CONFLICT (ref_id) DO NOTHING`,
			tx.RefID, tx.Amount, tx.FirstPartyID, tx.SecondPartyID, tx.OccurredAt, now,
		).Error; err != nil {
			return err
		}
	}
	return nil
}

// settle claims the transaction reference and marks the invoice paid in one
// transaction. Returns false when the reference was already claimed.
func (m *Matcher) settle(ctx context.Context, inv invoicedomain.Invoice, tx recdomain.WalletTransfer) (bool, error) {
	won := false
	err := m.db.WithContext(ctx).Transaction(func(dbtx *gorm.DB) error {
		claim := dbtx.Exec(
			`INSERT INTO payment_claims (ref_id, invoice_id, created_at)
			 VALUES (?, ?, ?)
			 ON CONFLICT (ref_id) DO NOTHING`,
			tx.RefID, inv.ID, time.Now().UTC(),
		)
		if claim.Error != nil {
			return claim.Error
		}
		if claim.RowsAffected == 0 {
			return nil
		}
		won = true

		now := m.clock.Now()
		overpaid := tx.Amount - inv.Amount
		if err := dbtx.Exec(
			`UPDATE invoices
			 SET status = 'paid', payment_ref = ?, overpaid = ?, updated_at = ?
			 WHERE id = ?`,
			tx.RefID, overpaid, now, inv.ID,
		).Error; err != nil {
			return err
		}

		calcIDs := []int64(inv.CalculationIDs)
		if len(calcIDs) == 0 {
			return nil
		}
		return dbtx.Exec(
			`UPDATE tax_calculations
			 SET status = 'paid', paid_at = ?, updated_at = ?
			 WHERE id IN ? AND status <> 'paid'`,
			now, now, calcIDs,
		).Error
	})
	return won, err
}

func (m *Matcher) aliasSet(ctx context.Context, inv invoicedomain.Invoice) map[int64]struct{} {
	set := map[int64]struct{}{inv.CharacterID: {}}
	aliases, err := m.roster.Aliases(ctx, inv.AccountID)
	if err != nil {
		m.log.Warn("alias resolution failed, payer only", zap.Int64("account_id", inv.AccountID), zap.Error(err))
		return set
	}
	for _, id := range aliases {
		set[id] = struct{}{}
	}
	return set
}
