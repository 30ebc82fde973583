package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
)

// MiningActivityRecord is one imported extraction event. Rows are immutable
// once written except for valuation refresh; the dedup key is
// (character, type, occurred_at).
type MiningActivityRecord struct {
	ID snowflake.ID `gorm:"primaryKey"`

	CharacterID int64 `gorm:"column:character_id;not null;uniqueIndex:idx_mining_dedup,priority:1"`
	CorpID      int64 `gorm:"column:corp_id;not null;index"`
	AllianceID  int64 `gorm:"column:alliance_id;not null"`

	TypeID   int64   `gorm:"column:type_id;not null;uniqueIndex:idx_mining_dedup,priority:2"`
	Quantity int64   `gorm:"not null"`
	Value    float64 `gorm:"not null;default:0"`

	OccurredAt time.Time `gorm:"column:occurred_at;not null;uniqueIndex:idx_mining_dedup,priority:3;index"`
	SystemID   int64     `gorm:"column:system_id;not null"`

	CreatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

func (MiningActivityRecord) TableName() string { return "mining_activity_records" }

// MiningEvent is a raw extraction event from the ledger source, prior to
// valuation.
type MiningEvent struct {
	CharacterID int64
	TypeID      int64
	Quantity    int64
	SystemID    int64
	OccurredAt  time.Time
}

// EventSource is the remote mining-ledger feed.
type EventSource interface {
	MiningEvents(ctx context.Context, characterIDs []int64, from, to time.Time) ([]MiningEvent, error)
}
