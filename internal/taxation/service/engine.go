package service

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/evetools/oretax/internal/config"
	"github.com/evetools/oretax/internal/period"
	rosterdomain "github.com/evetools/oretax/internal/roster/domain"
	sdedomain "github.com/evetools/oretax/internal/sde/domain"
	taxdomain "github.com/evetools/oretax/internal/taxation/domain"
	ratedomain "github.com/evetools/oretax/internal/taxrate/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Wormhole space occupies this solar system id band.
const (
	wormholeSystemMin int64 = 31000000
	wormholeSystemMax int64 = 31999999
)

type Params struct {
	fx.In

	DB      *gorm.DB
	Log     *zap.Logger
	GenID   *snowflake.Node
	Config  config.Config
	Policy  *config.TaxPolicyHolder
	Roster  rosterdomain.Repository
	SDE     sdedomain.Repository
	Rates   ratedomain.Resolver
	Credits taxdomain.CreditReader
}

// Engine aggregates valued activity into per-payer TaxCalculation rows.
type Engine struct {
	db      *gorm.DB
	log     *zap.Logger
	genID   *snowflake.Node
	cfg     config.Config
	policy  *config.TaxPolicyHolder
	roster  rosterdomain.Repository
	sde     sdedomain.Repository
	rates   ratedomain.Resolver
	credits taxdomain.CreditReader
}

func NewEngine(p Params) *Engine {
	return &Engine{
		db:      p.DB,
		log:     p.Log.Named("taxation.engine"),
		genID:   p.GenID,
		cfg:     p.Config,
		policy:  p.Policy,
		roster:  p.Roster,
		sde:     p.SDE,
		rates:   p.Rates,
		credits: p.Credits,
	}
}

type activityRow struct {
	CharacterID int64
	CorpID      int64
	AllianceID  int64
	TypeID      int64
	Value       float64
	SystemID    int64
}

type payerTotals struct {
	corpID     int64
	grossValue float64
	grossTax   float64
}

// Calculate aggregates the period's activity and upserts one calculation per
// canonical payer. A paid row is never downgraded. Returns the number of
// payers persisted.
func (e *Engine) Calculate(ctx context.Context, p period.Period) (int, error) {
	var rows []activityRow
	err := e.db.WithContext(ctx).Raw(
		`SELECT character_id, corp_id, alliance_id, type_id, value, system_id
		 FROM mining_activity_records
		 WHERE occurred_at >= ? AND occurred_at < ?`,
		p.Start, p.End,
	).Scan(&rows).Error
	if err != nil {
		return 0, err
	}

	policy := e.policy.Get()
	allowed := make(map[int64]struct{}, len(policy.TaxedSystems))
	for _, id := range policy.TaxedSystems {
		allowed[id] = struct{}{}
	}

	categories := make(map[int64]sdedomain.TaxCategory)
	exempt := make(map[int64]bool)
	payers := make(map[int64]int64)
	totals := make(map[int64]*payerTotals)

	for _, row := range rows {
		category := e.categoryOf(ctx, row.TypeID, categories)

		// gas mined in wormhole space is never taxed, allow-list or not
		if category == sdedomain.CategoryGas && isWormholeSystem(row.SystemID) {
			continue
		}
		if len(allowed) > 0 {
			if _, ok := allowed[row.SystemID]; !ok {
				continue
			}
		}

		skip, known := exempt[row.CharacterID]
		if !known {
			var err error
			skip, err = e.rates.Exempt(ctx, row.CharacterID, row.CorpID, p.Start)
			if err != nil {
				e.log.Warn("exemption lookup failed, taxing", zap.Int64("character_id", row.CharacterID), zap.Error(err))
				skip = false
			}
			exempt[row.CharacterID] = skip
		}
		if skip {
			continue
		}

		rate, err := e.rates.Resolve(ctx, row.CorpID, row.AllianceID, p.Start, category)
		if err != nil {
			e.log.Warn("rate resolution failed, skipping line", zap.Int64("character_id", row.CharacterID), zap.Error(err))
			continue
		}

		payer := e.canonicalPayer(ctx, row.CharacterID, payers)
		acc, ok := totals[payer]
		if !ok {
			acc = &payerTotals{corpID: row.CorpID}
			totals[payer] = acc
		}
		acc.grossValue += row.Value
		acc.grossTax += row.Value * rate / 100
	}

	persisted := 0
	for payer, acc := range totals {
		if acc.grossValue == 0 && acc.grossTax == 0 {
			continue
		}
		if err := e.upsert(ctx, payer, acc, p); err != nil {
			e.log.Warn("calculation upsert failed", zap.Int64("payer_id", payer), zap.Error(err))
			continue
		}
		persisted++
	}

	e.log.Info("tax calculation finished",
		zap.String("period", p.String()),
		zap.Int("activity_rows", len(rows)),
		zap.Int("payers", persisted),
	)
	return persisted, nil
}

func (e *Engine) upsert(ctx context.Context, payer int64, acc *payerTotals, p period.Period) error {
	balance, err := e.credits.Balance(ctx, payer)
	if err != nil {
		e.log.Warn("credit lookup failed, applying none", zap.Int64("payer_id", payer), zap.Error(err))
		balance = 0
	}
	applied := balance
	if applied > acc.grossTax {
		applied = acc.grossTax
	}
	net := acc.grossTax - applied

	effective := 0.0
	if acc.grossValue > 0 {
		effective = acc.grossTax / acc.grossValue
	}

	corpID := acc.corpID
	if c, err := e.roster.Character(ctx, payer); err == nil && c != nil {
		corpID = c.CorpID
	}

	now := time.Now().UTC()
	return e.db.WithContext(ctx).Exec(
		`INSERT INTO tax_calculations (
			id, character_id, corp_id, period_start, period_end,
			gross_value, effective_rate, gross_tax, credit_applied, net_tax,
			status, paid_at, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, 'pending', NULL, ?, ?)
		ON CONFLICT (character_id, period_start) DO UPDATE SET
			corp_id = excluded.corp_id,
			period_end = excluded.period_end,
			gross_value = excluded.gross_value,
			effective_rate = excluded.effective_rate,
			gross_tax = excluded.gross_tax,
			credit_applied = excluded.credit_applied,
			net_tax = excluded.net_tax,
			status = excluded.status,
			paid_at = excluded.paid_at,
			updated_at = excluded.updated_at
		WHERE tax_calculations.status <> 'paid'`,
		e.genID.Generate(),
		payer,
		corpID,
		p.Start,
		p.End,
		acc.grossValue,
		effective,
		acc.grossTax,
		applied,
		net,
		now,
		now,
	).Error
}

// canonicalPayer resolves through account ownership, degrading to the raw
// character when ownership is unknown.
func (e *Engine) canonicalPayer(ctx context.Context, characterID int64, memo map[int64]int64) int64 {
	if payer, ok := memo[characterID]; ok {
		return payer
	}
	payer := characterID
	accountID, ok, err := e.roster.OwningAccount(ctx, characterID)
	if err == nil && ok {
		if main, mainErr := e.roster.MainCharacter(ctx, accountID); mainErr == nil {
			payer = main
		}
	} else if err != nil {
		e.log.Warn("ownership lookup failed, self-payer", zap.Int64("character_id", characterID), zap.Error(err))
	}
	memo[characterID] = payer
	return payer
}

func (e *Engine) categoryOf(ctx context.Context, typeID int64, memo map[int64]sdedomain.TaxCategory) sdedomain.TaxCategory {
	if c, ok := memo[typeID]; ok {
		return c
	}
	category := sdedomain.CategoryOre
	item, err := e.sde.FindType(ctx, typeID)
	if err != nil {
		e.log.Warn("item lookup failed, defaulting to ore", zap.Int64("type_id", typeID), zap.Error(err))
	} else if item != nil {
		category = sdedomain.CategoryFor(item.GroupID)
	}
	memo[typeID] = category
	return category
}

func isWormholeSystem(systemID int64) bool {
	return systemID >= wormholeSystemMin && systemID <= wormholeSystemMax
}
