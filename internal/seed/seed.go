package seed

import (
	"context"
	"errors"

	sdedomain "github.com/evetools/oretax/internal/sde/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Harvestable reference rows so a fresh install can value common extractions
// before a full static data import. Compressed variants share the group of
// their parent ore.
var coreItemTypes = []sdedomain.ItemType{
	{ID: 1230, Name: "Veldspar", GroupID: 462, CategoryID: 25},
	{ID: 62516, Name: "Compressed Veldspar", GroupID: 462, CategoryID: 25},
	{ID: 1228, Name: "Scordite", GroupID: 460, CategoryID: 25},
	{ID: 62520, Name: "Compressed Scordite", GroupID: 460, CategoryID: 25},
	{ID: 1224, Name: "Pyroxeres", GroupID: 459, CategoryID: 25},
	{ID: 62524, Name: "Compressed Pyroxeres", GroupID: 459, CategoryID: 25},
	{ID: 18, Name: "Plagioclase", GroupID: 458, CategoryID: 25},
	{ID: 62528, Name: "Compressed Plagioclase", GroupID: 458, CategoryID: 25},

	{ID: 16264, Name: "Blue Ice", GroupID: sdedomain.GroupIce, CategoryID: 25},
	{ID: 28433, Name: "Compressed Blue Ice", GroupID: sdedomain.GroupIce, CategoryID: 25},
	{ID: 16262, Name: "Clear Icicle", GroupID: sdedomain.GroupIce, CategoryID: 25},
	{ID: 28434, Name: "Compressed Clear Icicle", GroupID: sdedomain.GroupIce, CategoryID: 25},

	{ID: 30370, Name: "Fullerite-C50", GroupID: sdedomain.GroupGasCloud, CategoryID: 25},
	{ID: 30371, Name: "Fullerite-C60", GroupID: sdedomain.GroupGasCloud, CategoryID: 25},
	{ID: 30372, Name: "Fullerite-C70", GroupID: sdedomain.GroupGasCloud, CategoryID: 25},

	{ID: 45490, Name: "Zeolites", GroupID: sdedomain.GroupMoonUbiquitous, CategoryID: 25},
	{ID: 62454, Name: "Compressed Zeolites", GroupID: sdedomain.GroupMoonUbiquitous, CategoryID: 25},
	{ID: 45493, Name: "Cobaltite", GroupID: sdedomain.GroupMoonCommon, CategoryID: 25},
	{ID: 62474, Name: "Compressed Cobaltite", GroupID: sdedomain.GroupMoonCommon, CategoryID: 25},
}

// EnsureCoreItemTypes idempotently seeds the harvestable reference rows.
// Rows imported later from the static data export win on conflict.
func EnsureCoreItemTypes(db *gorm.DB) error {
	if db == nil {
		return errors.New("seed database handle is required")
	}

	ctx := context.Background()
	return db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "id"}},
			DoNothing: true,
		}).
		Create(&coreItemTypes).Error
}
