package service

import (
	"context"
	"math"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/evetools/oretax/internal/clock"
	"github.com/evetools/oretax/internal/config"
	invoicedomain "github.com/evetools/oretax/internal/invoice/domain"
	"github.com/evetools/oretax/internal/period"
	rosterdomain "github.com/evetools/oretax/internal/roster/domain"
	taxdomain "github.com/evetools/oretax/internal/taxation/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB       *gorm.DB
	Log      *zap.Logger
	GenID    *snowflake.Node
	Policy   *config.TaxPolicyHolder
	Roster   rosterdomain.Repository
	Clock    clock.Clock
	Notifier invoicedomain.Notifier `optional:"true"`
}

// Generator consolidates pending calculations into per-account invoices.
type Generator struct {
	db       *gorm.DB
	log      *zap.Logger
	genID    *snowflake.Node
	policy   *config.TaxPolicyHolder
	roster   rosterdomain.Repository
	clock    clock.Clock
	notifier invoicedomain.Notifier
}

func NewGenerator(p Params) *Generator {
	return &Generator{
		db:       p.DB,
		log:      p.Log.Named("invoice.generator"),
		genID:    p.GenID,
		policy:   p.Policy,
		roster:   p.Roster,
		clock:    p.Clock,
		notifier: p.Notifier,
	}
}

type accountGroup struct {
	accountID int64
	mainID    int64
	netTotal  float64
	calcIDs   []int64
}

// Generate turns the period's pending calculations into invoices, one per
// owning account, and marks the referenced calculations sent (or paid when
// credit already covers them). An account already invoiced today is skipped.
func (g *Generator) Generate(ctx context.Context, p period.Period) ([]invoicedomain.Invoice, error) {
	var calcs []taxdomain.TaxCalculation
	err := g.db.WithContext(ctx).Raw(
		`SELECT id, character_id, corp_id, net_tax
		 FROM tax_calculations
		 WHERE period_start = ? AND status = 'pending'
		 ORDER BY character_id ASC`,
		p.Start,
	).Scan(&calcs).Error
	if err != nil {
		return nil, err
	}
	if len(calcs) == 0 {
		return nil, nil
	}

	groups := make(map[int64]*accountGroup)
	for _, calc := range calcs {
		accountID, mainID := g.owner(ctx, calc.CharacterID)
		grp, ok := groups[accountID]
		if !ok {
			grp = &accountGroup{accountID: accountID, mainID: mainID}
			groups[accountID] = grp
		}
		grp.netTotal += calc.NetTax
		grp.calcIDs = append(grp.calcIDs, int64(calc.ID))
	}

	now := g.clock.Now()
	today := now.Truncate(24 * time.Hour)
	dueDays := g.policy.Get().InvoiceDueDays

	var created []invoicedomain.Invoice
	for _, grp := range groups {
		invoiced, err := g.invoicedToday(ctx, grp.accountID, today)
		if err != nil {
			g.log.Warn("invoice guard check failed, skipping account", zap.Int64("account_id", grp.accountID), zap.Error(err))
			continue
		}
		if invoiced {
			// date-based idempotency guard: one invoice per account per
			// calendar day
			continue
		}

		amount := math.Floor(grp.netTotal)
		status := invoicedomain.StatusSent
		var paidAt *time.Time
		if amount <= 0 {
			// fully covered by credit
			amount = 0
			status = invoicedomain.StatusPaid
			paidAt = &now
		}

		inv := invoicedomain.Invoice{
			ID:             g.genID.Generate(),
			AccountID:      grp.accountID,
			CharacterID:    grp.mainID,
			Amount:         amount,
			DueDate:        today.AddDate(0, 0, dueDays),
			Status:         status,
			CalculationIDs: datatypes.NewJSONSlice(grp.calcIDs),
			CreatedAt:      now,
			UpdatedAt:      now,
		}

		err = g.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			if err := tx.Create(&inv).Error; err != nil {
				return err
			}
			calcStatus := taxdomain.StatusSent
			if status == invoicedomain.StatusPaid {
				calcStatus = taxdomain.StatusPaid
			}
			return tx.Exec(
				`UPDATE tax_calculations
				 SET status = ?, paid_at = ?, updated_at = ?
				 WHERE id IN ? AND status <> 'paid'`,
				calcStatus, paidAt, now, grp.calcIDs,
			).Error
		})
		if err != nil {
			g.log.Warn("invoice creation failed", zap.Int64("account_id", grp.accountID), zap.Error(err))
			continue
		}
		created = append(created, inv)
	}

	g.deliver(ctx, created)

	g.log.Info("invoice generation finished",
		zap.String("period", p.String()),
		zap.Int("invoices", len(created)),
	)
	return created, nil
}

func (g *Generator) deliver(ctx context.Context, invoices []invoicedomain.Invoice) {
	if g.notifier == nil || len(invoices) == 0 {
		return
	}
	g.notifier.Announce(ctx, len(invoices))
	now := g.clock.Now()
	for _, inv := range invoices {
		if inv.Status == invoicedomain.StatusPaid {
			continue
		}
		g.notifier.DeliverInvoice(ctx, inv)
		if err := g.db.WithContext(ctx).Exec(
			`UPDATE invoices SET notified_at = ? WHERE id = ?`, now, inv.ID,
		).Error; err != nil {
			g.log.Warn("notified_at update failed", zap.Int64("invoice_id", int64(inv.ID)), zap.Error(err))
		}
	}
}

func (g *Generator) invoicedToday(ctx context.Context, accountID int64, today time.Time) (bool, error) {
	var count int64
	err := g.db.WithContext(ctx).Raw(
		`SELECT COUNT(1) FROM invoices
		 WHERE account_id = ? AND created_at >= ? AND created_at < ?`,
		accountID, today, today.AddDate(0, 0, 1),
	).Scan(&count).Error
	return count > 0, err
}

// owner resolves the billing account; an unowned character is billed as its
// own single-alias account.
func (g *Generator) owner(ctx context.Context, characterID int64) (accountID, mainID int64) {
	account, ok, err := g.roster.OwningAccount(ctx, characterID)
	if err != nil || !ok {
		if err != nil {
			g.log.Warn("ownership lookup failed, self-account", zap.Int64("character_id", characterID), zap.Error(err))
		}
		return characterID, characterID
	}
	main, err := g.roster.MainCharacter(ctx, account)
	if err != nil {
		return account, characterID
	}
	return account, main
}
