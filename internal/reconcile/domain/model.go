package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
)

// WalletTransfer is a persisted incoming wallet journal entry. The table is
// the engine's raw transaction history: reconciliation matches against it and
// the credit recompute derives balances from it.
type WalletTransfer struct {
	RefID         int64     `gorm:"primaryKey;column:ref_id"`
	Amount        float64   `gorm:"not null"`
	FirstPartyID  int64     `gorm:"column:first_party_id;not null;index"`
	SecondPartyID int64     `gorm:"column:second_party_id;not null;index"`
	OccurredAt    time.Time `gorm:"column:occurred_at;not null;index"`

	CreatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

func (WalletTransfer) TableName() string { return "wallet_transfers" }

// PaymentClaim serializes transaction-to-invoice assignment across runs. The
// uniqueness constraint on ref_id is the at-most-one-invoice-per-transaction
// invariant; concurrent matchers race on the insert, not on process memory.
type PaymentClaim struct {
	RefID     int64        `gorm:"primaryKey;column:ref_id"`
	InvoiceID snowflake.ID `gorm:"column:invoice_id;not null;index"`

	CreatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

func (PaymentClaim) TableName() string { return "payment_claims" }

// TransactionSource is the remote wallet feed for the collection account.
type TransactionSource interface {
	IncomingTransfers(ctx context.Context, since time.Time) ([]WalletTransfer, error)
}
