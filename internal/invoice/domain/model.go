package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

type InvoiceStatus string

const (
	StatusSent    InvoiceStatus = "sent"
	StatusPartial InvoiceStatus = "partial"
	StatusPaid    InvoiceStatus = "paid"
)

// Invoice consolidates one account's pending calculations into a billing
// document. Amount is the floored sum of referenced net taxes. The
// calculation ids are kept as metadata for reversal and for the credit
// recompute's invoiced-total reconstruction.
type Invoice struct {
	ID snowflake.ID `gorm:"primaryKey"`

	AccountID   int64 `gorm:"column:account_id;not null;index"`
	CharacterID int64 `gorm:"column:character_id;not null"`

	Amount float64 `gorm:"not null"`
	// AppliedPartial accumulates partial amounts already applied against
	// the original total, so amount + applied_partial is the true
	// historical obligation.
	AppliedPartial float64 `gorm:"column:applied_partial;not null;default:0"`
	// Overpaid is a provisional note of excess payment; the authoritative
	// balance always comes from the credit recompute.
	Overpaid float64 `gorm:"not null;default:0"`

	DueDate time.Time     `gorm:"column:due_date;not null"`
	Status  InvoiceStatus `gorm:"type:text;not null"`

	PaymentRef *int64     `gorm:"column:payment_ref"`
	NotifiedAt *time.Time `gorm:"column:notified_at"`

	CalculationIDs datatypes.JSONSlice[int64] `gorm:"column:calculation_ids"`

	CreatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

func (Invoice) TableName() string { return "invoices" }

// Notifier is the outbound, fire-and-forget delivery surface. Failures are
// logged by implementations and never propagate into the batch.
type Notifier interface {
	Announce(ctx context.Context, invoiceCount int)
	DeliverInvoice(ctx context.Context, inv Invoice)
}
