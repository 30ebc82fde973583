package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
)

type CalculationStatus string

const (
	StatusPending CalculationStatus = "pending"
	StatusSent    CalculationStatus = "sent"
	StatusPaid    CalculationStatus = "paid"
)

// TaxCalculation is one payer's obligation for one period. The status machine
// is pending -> sent -> paid; paid is terminal and survives recomputes.
type TaxCalculation struct {
	ID snowflake.ID `gorm:"primaryKey"`

	// CharacterID is the canonical payer (main character of the owning
	// account, or the raw character when ownership is unresolved).
	CharacterID int64 `gorm:"column:character_id;not null;uniqueIndex:idx_calc_payer_period,priority:1"`
	CorpID      int64 `gorm:"column:corp_id;not null"`

	PeriodStart time.Time `gorm:"column:period_start;not null;uniqueIndex:idx_calc_payer_period,priority:2"`
	PeriodEnd   time.Time `gorm:"column:period_end;not null"`

	GrossValue    float64 `gorm:"column:gross_value;not null;default:0"`
	EffectiveRate float64 `gorm:"column:effective_rate;not null;default:0"`
	GrossTax      float64 `gorm:"column:gross_tax;not null;default:0"`
	CreditApplied float64 `gorm:"column:credit_applied;not null;default:0"`
	NetTax        float64 `gorm:"column:net_tax;not null;default:0"`

	Status CalculationStatus `gorm:"type:text;not null;default:'pending'"`
	PaidAt *time.Time        `gorm:"column:paid_at"`

	CreatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

func (TaxCalculation) TableName() string { return "tax_calculations" }

// CreditReader is the engine's read-only view of standing balances. Writes
// belong exclusively to the credit ledger recompute.
type CreditReader interface {
	Balance(ctx context.Context, characterID int64) (float64, error)
}
