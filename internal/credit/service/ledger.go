package service

import (
	"context"
	"math"
	"time"

	"github.com/evetools/oretax/internal/config"
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
}

// Ledger authoritatively recomputes standing credit from raw transaction
// history. It is the sole writer of credit_balances.
type Ledger struct {
	db     *gorm.DB
	log    *zap.Logger
	cfg    config.Config
	policy *config.TaxPolicyHolder
	roster rosterdomain.Repository
}

func NewLedger(p Params) *Ledger {
	return &Ledger{
		db:     p.DB,
		log:    p.Log.Named("credit.ledger"),
		cfg:    p.Config,
		policy: p.Policy,
		roster: p.Roster,
	}
}

// Recompute rebuilds every balance inside one transaction, so readers never
// observe a reset-but-not-yet-rebuilt state. Fully idempotent: running it
// twice with no new transactions yields identical balances. With dryRun the
// result is returned without touching the table.
func (l *Ledger) Recompute(ctx context.Context, dryRun bool) (map[int64]float64, error) {
	balances, err := l.derive(ctx)
	if err != nil {
		return nil, err
	}
	if dryRun {
		return balances, nil
	}

	err = l.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Exec(`DELETE FROM credit_balances`).Error; err != nil {
			return err
		}
		now := time.Now().UTC()
		for characterID, amount := range balances {
			if err := tx.Exec(
				`INSERT INTO credit_balances (character_id, amount, updated_at) VALUES (?, ?, ?)`,
				characterID, amount, now,
			).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	l.log.Info("credit recompute finished", zap.Int("balances", len(balances)))
	return balances, nil
}

func (l *Ledger) derive(ctx context.Context) (map[int64]float64, error) {
	var accountIDs []int64
	err := l.db.WithContext(ctx).Raw(
		`SELECT DISTINCT account_id FROM invoices ORDER BY account_id`,
	).Scan(&accountIDs).Error
	if err != nil {
		return nil, err
	}

	deMinimis := l.policy.Get().CreditDeMinimis
	balances := make(map[int64]float64)

	for _, accountID := range accountIDs {
		invoiced, err := l.totalInvoiced(ctx, accountID)
		if err != nil {
			return nil, err
		}

		aliases, err := l.roster.Aliases(ctx, accountID)
		if err != nil {
			l.log.Warn("alias lookup failed, skipping account", zap.Int64("account_id", accountID), zap.Error(err))
			continue
		}
		if len(aliases) == 0 {
			// unlinked payer: the invoice carries the character id directly
			aliases = []int64{accountID}
		}
		sent, err := l.totalSent(ctx, aliases)
		if err != nil {
			return nil, err
		}

		credit := math.Floor(math.Max(0, sent-invoiced))
		if credit == 0 || credit < deMinimis {
			continue
		}

		main, err := l.roster.MainCharacter(ctx, accountID)
		if err != nil {
			if err != rosterdomain.ErrNoMainCharacter {
				l.log.Warn("no canonical character for credit", zap.Int64("account_id", accountID), zap.Error(err))
				continue
			}
			main = accountID
		}
		balances[main] = credit
	}
	return balances, nil
}

// totalInvoiced reconstructs the account's true historical obligation:
// current remaining amounts plus every partial amount already applied.
func (l *Ledger) totalInvoiced(ctx context.Context, accountID int64) (float64, error) {
	var total float64
	err := l.db.WithContext(ctx).Raw(
		`SELECT COALESCE(SUM(amount + applied_partial), 0)
		 FROM invoices
		 WHERE account_id = ?`,
		accountID,
	).Scan(&total).Error
	return total, err
}

func (l *Ledger) totalSent(ctx context.Context, aliases []int64) (float64, error) {
	if len(aliases) == 0 {
		return 0, nil
	}
	var total float64
	err := l.db.WithContext(ctx).Raw(
		`SELECT COALESCE(SUM(amount), 0)
		 FROM wallet_transfers
		 WHERE amount > 0 AND second_party_id = ? AND first_party_id IN ?`,
		l.cfg.CollectionCorpID,
		aliases,
	).Scan(&total).Error
	return total, err
}
