package domain

import "time"

// CreditBalance is a payer's standing ISK credit from historical overpayment.
// The recompute in the credit service is the only writer; everything else
// reads.
type CreditBalance struct {
	CharacterID int64     `gorm:"primaryKey;column:character_id"`
	Amount      float64   `gorm:"not null;default:0"`
	UpdatedAt   time.Time `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

func (CreditBalance) TableName() string { return "credit_balances" }
