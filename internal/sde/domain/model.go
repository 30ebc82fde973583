package domain

import "strings"

// ItemType is read-only reference data mirrored from the static data export.
type ItemType struct {
	ID         int64  `gorm:"primaryKey;column:id"`
	Name       string `gorm:"type:text;not null;index"`
	GroupID    int64  `gorm:"column:group_id;not null"`
	CategoryID int64  `gorm:"column:category_id;not null"`
}

func (ItemType) TableName() string { return "item_types" }

// TaxCategory buckets an item for rate resolution.
type TaxCategory string

const (
	CategoryOre     TaxCategory = "ore"
	CategoryIce     TaxCategory = "ice"
	CategoryGas     TaxCategory = "gas"
	CategoryMoonR4  TaxCategory = "moon_r4"
	CategoryMoonR8  TaxCategory = "moon_r8"
	CategoryMoonR16 TaxCategory = "moon_r16"
	CategoryMoonR32 TaxCategory = "moon_r32"
	CategoryMoonR64 TaxCategory = "moon_r64"

	// CategoryAll is the wildcard scope used by rate rows, never assigned
	// to an item.
	CategoryAll TaxCategory = "all"
)

// Static data group ids for harvestables.
const (
	GroupIce            int64 = 465
	GroupGasCloud       int64 = 711
	GroupMoonUbiquitous int64 = 1884
	GroupMoonCommon     int64 = 1920
	GroupMoonUncommon   int64 = 1921
	GroupMoonRare       int64 = 1922
	GroupMoonException  int64 = 1923
)

// CategoryFor maps a static data group to a tax category. Unknown groups
// default to ore so missing reference data never aborts a batch.
func CategoryFor(groupID int64) TaxCategory {
	switch groupID {
	case GroupIce:
		return CategoryIce
	case GroupGasCloud:
		return CategoryGas
	case GroupMoonUbiquitous:
		return CategoryMoonR4
	case GroupMoonCommon:
		return CategoryMoonR8
	case GroupMoonUncommon:
		return CategoryMoonR16
	case GroupMoonRare:
		return CategoryMoonR32
	case GroupMoonException:
		return CategoryMoonR64
	default:
		return CategoryOre
	}
}

// IsCompressed reports whether the type is already a compressed variant.
func (t ItemType) IsCompressed() bool {
	return strings.HasPrefix(t.Name, "Compressed ")
}

// CompressedName is the canonical name of the liquidation-equivalent variant.
func (t ItemType) CompressedName() string {
	if t.IsCompressed() {
		return t.Name
	}
	return "Compressed " + t.Name
}
