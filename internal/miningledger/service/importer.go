package service

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/evetools/oretax/internal/config"
	miningdomain "github.com/evetools/oretax/internal/miningledger/domain"
	"github.com/evetools/oretax/internal/period"
	"github.com/evetools/oretax/internal/pricing"
	rosterdomain "github.com/evetools/oretax/internal/roster/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB       *gorm.DB
	Log      *zap.Logger
	GenID    *snowflake.Node
	Config   config.Config
	Source   miningdomain.EventSource
	Roster   rosterdomain.Repository
	Oracle   *pricing.Oracle
	Resolver *pricing.Resolver
}

// Importer ingests raw mining events idempotently. Re-running it over the
// same period inserts nothing new.
type Importer struct {
	db       *gorm.DB
	log      *zap.Logger
	genID    *snowflake.Node
	cfg      config.Config
	source   miningdomain.EventSource
	roster   rosterdomain.Repository
	oracle   *pricing.Oracle
	resolver *pricing.Resolver
}

func NewImporter(p Params) *Importer {
	return &Importer{
		db:       p.DB,
		log:      p.Log.Named("miningledger.importer"),
		genID:    p.GenID,
		cfg:      p.Config,
		source:   p.Source,
		roster:   p.Roster,
		oracle:   p.Oracle,
		resolver: p.Resolver,
	}
}

// Import pulls the period's events for every alliance character, values each
// line at the compressed-variant unit price and inserts with dedup. Returns
// the number of newly inserted records.
func (i *Importer) Import(ctx context.Context, p period.Period) (int, error) {
	chars, err := i.roster.CharactersInAlliance(ctx, i.cfg.AllianceID)
	if err != nil {
		return 0, err
	}
	if len(chars) == 0 {
		i.log.Info("no roster characters to import", zap.Int64("alliance_id", i.cfg.AllianceID))
		return 0, nil
	}

	ids := make([]int64, 0, len(chars))
	byID := make(map[int64]rosterdomain.Character, len(chars))
	for _, c := range chars {
		ids = append(ids, c.ID)
		byID[c.ID] = c
	}

	events, err := i.source.MiningEvents(ctx, ids, p.Start, p.End)
	if err != nil {
		return 0, err
	}
	if len(events) == 0 {
		return 0, nil
	}

	variants := make([]int64, 0, len(events))
	for _, ev := range events {
		variants = append(variants, i.resolver.CompressedVariant(ctx, ev.TypeID))
	}
	i.oracle.Prime(ctx, variants)

	inserted := 0
	for _, ev := range events {
		owner := byID[ev.CharacterID]
		unit := i.oracle.UnitPrice(ctx, i.resolver.CompressedVariant(ctx, ev.TypeID))
		value := unit * float64(ev.Quantity)

		result := i.db.WithContext(ctx).Exec(
			`INSERT INTO mining_activity_records (
				id, character_id, corp_id, alliance_id, type_id, quantity, value, occurred_at, system_id, created_at
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT (character_id, type_id, occurred_at) DO NOTHING`,
			i.genID.Generate(),
			ev.CharacterID,
			owner.CorpID,
			owner.AllianceID,
			ev.TypeID,
			ev.Quantity,
			value,
			ev.OccurredAt,
			ev.SystemID,
			time.Now().UTC(),
		)
		if result.Error != nil {
			i.log.Warn("activity insert failed",
				zap.Int64("character_id", ev.CharacterID),
				zap.Int64("type_id", ev.TypeID),
				zap.Error(result.Error),
			)
			continue
		}
		inserted += int(result.RowsAffected)
	}

	i.log.Info("mining import finished",
		zap.String("period", p.String()),
		zap.Int("events", len(events)),
		zap.Int("inserted", inserted),
	)
	return inserted, nil
}

// RefreshValuations re-prices records that imported while price data was
// unavailable and were valued at zero.
func (i *Importer) RefreshValuations(ctx context.Context, p period.Period) (int, error) {
	var rows []miningdomain.MiningActivityRecord
	err := i.db.WithContext(ctx).Raw(
		`SELECT id, character_id, type_id, quantity
		 FROM mining_activity_records
		 WHERE value = 0 AND occurred_at >= ? AND occurred_at < ?`,
		p.Start, p.End,
	).Scan(&rows).Error
	if err != nil {
		return 0, err
	}

	updated := 0
	for _, row := range rows {
		unit := i.oracle.UnitPrice(ctx, i.resolver.CompressedVariant(ctx, row.TypeID))
		if unit <= 0 {
			continue
		}
		result := i.db.WithContext(ctx).Exec(
			`UPDATE mining_activity_records SET value = ? WHERE id = ?`,
			unit*float64(row.Quantity),
			row.ID,
		)
		if result.Error != nil {
			i.log.Warn("valuation refresh failed", zap.Int64("record_id", int64(row.ID)), zap.Error(result.Error))
			continue
		}
		updated += int(result.RowsAffected)
	}
	return updated, nil
}
